// Package configs embeds the configuration templates written by
// `docfind config init`.
//
// Both templates only restate the defaults from config.NewConfig, with
// comments. Machine-specific paths stay commented out so the computed
// defaults apply.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .docfind.yaml by `docfind config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is written to the user config path by
// `docfind config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
