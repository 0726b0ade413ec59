// Package ollama implements generation.Generator against a local Ollama
// server using JSON-format completions.
package ollama
