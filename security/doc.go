// Package security reads and writes the AWS Encryption SDK message format
// with an AWS KMS keyring. Cognito encrypts the verification code it hands
// to a custom sender trigger in this format.
//
// Both message format versions are supported for decryption: version 1
// (suites without key commitment) and version 2 (committing suites).
// Encryption always produces framed messages.
package security
