// Package vision extracts printed card fields from scan images using the
// Gemini multimodal API. The model is held to a closed response schema
// where every field is nullable; anything the model cannot read with
// confidence comes back null rather than guessed.
package vision
