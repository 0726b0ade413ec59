// Package domain contains the entities the generation scheduler works on:
// papers and the AI-generated teaching content attached to them. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
