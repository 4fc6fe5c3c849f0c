package llm

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// StructuredOutput names a JSON schema the model response must follow
type StructuredOutput struct {
	Name   string
	Schema *jsonschema.Definition
}

// ModelInterface defines the contract for the text-generation model service
type ModelInterface interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string, output StructuredOutput) (string, error)
}
