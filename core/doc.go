// Package core contains the delivery contracts, the inbound event model and
// the orchestration that turns an encrypted verification code into a
// delivered SMS or voice call. Lower-level adapters (key management,
// messaging providers, transports) depend on this package; core must not
// depend on them.
package core
