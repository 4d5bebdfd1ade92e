// Package strategy shapes how a backend is asked to return its translations.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/ownlingo/phrasebatch/translator"
)

// Method names an output-shaping method
type Method string

const (
	Auto       Method = "auto"
	Standard   Method = "standard"
	Structured Method = "structured"
	Function   Method = "function"
)

// ParseMethod converts a user-supplied method name. An empty name is Auto.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Auto, nil
	case Auto, Standard, Structured, Function:
		return m, nil
	default:
		return "", &translator.ConfigError{Err: fmt.Errorf("unknown method %q (want auto, standard, structured or function)", s)}
	}
}

// Strategy sends a rendered prompt to a backend in one output shape
type Strategy interface {
	Method() Method
	Execute(ctx context.Context, backend translator.Backend, prompt string) (*translator.Response, error)
}

// Select resolves method against the backend capabilities. Auto prefers
// function calling, then structured output, then free text. An explicit
// method the backend cannot honor is a ConfigError wrapping
// UnsupportedMethodError.
func Select(method Method, backend translator.Backend) (Strategy, error) {
	caps := backend.Capabilities()

	switch method {
	case Auto, "":
		switch {
		case caps.Has(translator.FunctionCalling):
			return FunctionCall{}, nil
		case caps.Has(translator.StructuredOutput):
			return Schema{}, nil
		default:
			return Text{}, nil
		}
	case Standard:
		return Text{}, nil
	case Structured:
		if !caps.Has(translator.StructuredOutput) {
			return nil, unsupported(method, backend)
		}
		return Schema{}, nil
	case Function:
		if !caps.Has(translator.FunctionCalling) {
			return nil, unsupported(method, backend)
		}
		return FunctionCall{}, nil
	default:
		return nil, &translator.ConfigError{Err: fmt.Errorf("unknown method %q", method)}
	}
}

func unsupported(method Method, backend translator.Backend) error {
	return &translator.ConfigError{Err: &translator.UnsupportedMethodError{Method: string(method), Backend: backend.Name()}}
}

// Text sends the prompt as free text and expects JSON back
type Text struct{}

func (Text) Method() Method { return Standard }

func (Text) Execute(ctx context.Context, backend translator.Backend, prompt string) (*translator.Response, error) {
	return backend.Invoke(ctx, &translator.Request{
		Prompt: prompt,
		System: translator.SystemPrompt(),
		Shape:  translator.ShapeText,
	})
}

// Schema constrains generation to the translations schema
type Schema struct{}

func (Schema) Method() Method { return Structured }

func (Schema) Execute(ctx context.Context, backend translator.Backend, prompt string) (*translator.Response, error) {
	return backend.Invoke(ctx, &translator.Request{
		Prompt: prompt,
		System: translator.SystemPrompt(),
		Shape:  translator.ShapeSchema,
		Schema: translator.TranslationsSchema(),
	})
}

// FunctionCall forces the backend to answer through the translations function;
// the raw output is the call's argument payload
type FunctionCall struct{}

func (FunctionCall) Method() Method { return Function }

func (FunctionCall) Execute(ctx context.Context, backend translator.Backend, prompt string) (*translator.Response, error) {
	return backend.Invoke(ctx, &translator.Request{
		Prompt:   prompt,
		System:   translator.SystemPrompt(),
		Shape:    translator.ShapeFunction,
		Function: translator.TranslationsFunctionSpec(),
	})
}
