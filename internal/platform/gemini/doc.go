// Package gemini provides an implementation of the generation.Generator
// interface that uses Google's Gemini API to produce paper content.
//
// The generator renders generation.Inputs through a generation.PromptBuilder,
// asks the model for a JSON response and decodes it with
// generation.DecodeContent. Transient API failures are retried with
// exponential backoff and jitter; blocked content and malformed responses are
// returned immediately.
package gemini
