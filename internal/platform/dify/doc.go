// Package dify implements generation.Generator against a Dify workflow
// running in blocking response mode.
package dify
