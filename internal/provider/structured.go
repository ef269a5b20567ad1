package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const structuredInstruction = `Reply with a single JSON object that matches this JSON schema.
Reply JSON only: no prose, no explanations, no markdown.

Schema:
%s`

const reinforcedInstruction = `Your previous reply could not be used (%v).
Reply with ONLY the JSON object matching the schema above. Every required field must be present.
Do not wrap it in markdown fences and do not add any text before or after it.`

// TextGenerator is the free-text call a structured request is layered on
type TextGenerator func(ctx context.Context, req GenerateRequest) (string, error)

// StructuredVia implements GenerateStructured on top of a text generator:
// the schema is injected into the system prompt, the reply is cleaned,
// parsed and shape-checked, with one retry using a reinforced prompt.
func StructuredVia(ctx context.Context, providerName string, generate TextGenerator, req StructuredRequest) (map[string]any, error) {
	if req.Schema == nil {
		return nil, NewError(KindInvalidStructuredOutput, providerName, errors.New("no schema given"))
	}

	system := strings.TrimSpace(req.System + "\n\n" + fmt.Sprintf(structuredInstruction, req.Schema.JSON()))
	genReq := GenerateRequest{
		Prompt:      req.Prompt,
		System:      system,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			genReq.System = system + "\n\n" + fmt.Sprintf(reinforcedInstruction, lastErr)
			slog.Debug("provider.StructuredVia: retrying with reinforced prompt", "provider", providerName, "error", lastErr)
		}

		text, err := generate(ctx, genReq)
		if err != nil {
			return nil, err
		}

		obj, err := ParseStructured(text, req.Schema)
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}

	return nil, NewError(KindInvalidStructuredOutput, providerName, lastErr)
}

// ParseStructured extracts, parses and validates a JSON object from raw model output
func ParseStructured(text string, schema *Schema) (map[string]any, error) {
	raw := extractJSONObject(cleanJSONResponse(text))
	if raw == "" {
		return nil, errors.New("no JSON object in response")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, fmt.Errorf("schema mismatch: %w", err)
	}
	return obj, nil
}

// Decode converts a structured object into a typed value
func Decode[T any](obj map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(obj)
	if err != nil {
		return out, fmt.Errorf("failed to marshal object: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to decode object: %w", err)
	}
	return out, nil
}

// cleanJSONResponse strips markdown code fences around a model reply
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if i := strings.Index(response, "```"); i >= 0 {
		rest := response[i+3:]
		// drop the language tag on the fence line
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		response = rest
	}

	return strings.TrimSpace(response)
}

// extractJSONObject returns the first balanced {...} in s, honouring strings
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
