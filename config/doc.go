// Package config loads the YAML configuration of a chatmesh process.
//
//	log:
//	  level: info
//	engine:
//	  task_timeout: 90s
//	models:
//	  - id: gpt-4o
//	    provider: openai
//	    api_key: ${OPENAI_API_KEY}
//	assistants:
//	  - id: writer
//	    name: Writer
//	    model: gpt-4o
//	    instruction: You are {{.Name}}, a concise technical writer.
//	supervisor:
//	  type: round_robin
//
// A .env file next to the configuration is loaded before ${VAR} references
// are expanded.
package config
