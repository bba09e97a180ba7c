// Package config loads SDK configuration structs from environment
// variables, with optional .env file support for local development.
//
// Configuration structs declare their variables through `env` tags parsed
// by github.com/caarlos0/env. A .env file in the working directory is
// loaded once per process before the first parse.
package config
