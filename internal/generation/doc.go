// Package generation defines the boundary between the scheduler and the
// external AI services that produce paper content. It holds the Generator
// interface, the assembly of workflow inputs from papers and vocabulary,
// prompt rendering for LLM backends, decoding of raw model output, and the
// Validator that checks generated content before it is committed.
package generation
