// Package credentials tracks per-resource access keys and the current
// session/subscription identity across SDK calls.
//
// The validation service uses a two-tier credential model: a static
// application credential travels in the Authorization header, while each
// checkout session or subscription carries its own access key. This package
// owns the second tier: which access key belongs to which identifier, and
// which identifier is "current" for calls that don't name one explicitly.
package credentials
