// Package mqtt publishes booking events and a periodic service status
// to an MQTT broker so downstream systems (ticketing, notifications,
// dashboards) can react without polling the API.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes a retained birth message ("online") to the
// availability topic; a will message moves that topic to "offline" on
// unexpected disconnects.
//
// Topics, relative to the configured prefix (default "gotravel"):
//
//	<prefix>/availability       online | offline (retained)
//	<prefix>/status             JSON service status (retained)
//	<prefix>/bookings/created   JSON booking event per new booking
package mqtt
