package ai

import "Pictor/core"

// NewImageRequest asks for exactly one image; size is the requested resolution
func NewImageRequest(model string, request core.GenerationRequest) *ImageGenerationRequest {
	return &ImageGenerationRequest{
		Model:   model,
		Prompt:  request.Prompt,
		N:       1,
		Size:    request.Resolution,
		Style:   request.Style,
		Quality: request.Quality,
	}
}
