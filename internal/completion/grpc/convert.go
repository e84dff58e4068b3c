package grpc

import (
	"github.com/ankittk/devcrew/internal/completion"
	"google.golang.org/protobuf/types/known/structpb"
)

// An unset temperature is left out of the struct so the server applies its default.
func requestToStruct(req completion.Request) (*structpb.Struct, error) {
	m := map[string]any{
		"model":      req.Model,
		"system":     req.System,
		"prompt":     req.Prompt,
		"max_tokens": req.MaxTokens,
	}
	if req.Temperature != nil {
		m["temperature"] = *req.Temperature
	}
	return structpb.NewStruct(m)
}

func structToRequest(s *structpb.Struct) completion.Request {
	f := s.GetFields()
	req := completion.Request{
		Model:     f["model"].GetStringValue(),
		System:    f["system"].GetStringValue(),
		Prompt:    f["prompt"].GetStringValue(),
		MaxTokens: int(f["max_tokens"].GetNumberValue()),
	}
	if v, ok := f["temperature"]; ok {
		t := v.GetNumberValue()
		req.Temperature = &t
	}
	return req
}
