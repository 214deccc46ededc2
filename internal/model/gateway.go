package model

import (
	"fmt"
	"strings"
)

type AuthStyle string

const (
	AuthBearer AuthStyle = "bearer"
	AuthToken  AuthStyle = "token"
	AuthAPIKey AuthStyle = "apikey"
)

func ParseAuthStyle(s string) (AuthStyle, error) {
	switch AuthStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", AuthBearer:
		return AuthBearer, nil
	case AuthToken:
		return AuthToken, nil
	case AuthAPIKey:
		return AuthAPIKey, nil
	}
	return "", fmt.Errorf("unknown auth style %q (want bearer, token or apikey)", s)
}

// FieldMap names the JSON fields carrying the recipient and the text.
type FieldMap struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

var DefaultFieldMap = FieldMap{Number: "number", Message: "body"}

func (f FieldMap) IsZero() bool {
	return f.Number == "" || f.Message == ""
}

type GatewayProfile struct {
	BaseURL   string    `json:"base_url"`
	Token     string    `json:"-"`
	AuthStyle AuthStyle `json:"auth_style"`
	// EndpointPath is empty when BaseURL is itself the endpoint.
	EndpointPath string   `json:"endpoint_path"`
	Fields       FieldMap `json:"fields"`
}

func (p GatewayProfile) Configured() bool {
	return p.BaseURL != "" && p.Token != ""
}

// FieldsOrDefault is the mapping used for sends before any discovery ran.
func (p GatewayProfile) FieldsOrDefault() FieldMap {
	if p.Fields.IsZero() {
		return DefaultFieldMap
	}
	return p.Fields
}
