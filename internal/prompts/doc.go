// Package prompts contains the prompt text the agent sends to models.
//
// Prompt text is Go code rather than config files because it is program
// logic: the agent loop depends on exactly what the nudges ask for, and
// tests can check the interpolated output. Operators can still replace
// the base system prompt with agent.system_prompt in config.yaml.
//
// Convention: each prompt category gets its own file (system.go,
// agent.go) with an exported function or constant that returns the fully
// interpolated prompt string.
package prompts
