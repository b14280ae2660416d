// Package secrets models the Sealed Secrets master key and the files
// sealkeeper writes for it.
//
// # Key Record
//
// A KeyRecord is a kubernetes.io/tls Secret in JSON form:
//
//	{
//	  "apiVersion": "v1",
//	  "kind": "Secret",
//	  "type": "kubernetes.io/tls",
//	  "metadata": {"name": "sealed-secrets-key", "namespace": "kube-system", ...},
//	  "data": {"tls.crt": "<base64 PEM>", "tls.key": "<base64 PEM>"}
//	}
//
// ParseKeyRecord accepts that JSON, the equivalent YAML manifest, or a
// single-item `kind: List` as printed by kubectl. Validate decodes both
// fields and checks that the private key belongs to the certificate.
// YAML renders the record as a typed corev1.Secret manifest.
//
// # Key Pairs
//
// GenerateKeyPair creates the self-signed RSA certificate the controller
// uses to seal and unseal secrets (4096-bit, CN/O "sealed-secret" by default).
//
// # Encrypted Artifacts
//
// Backups can be sealed with a generated passphrase. The key is derived
// with scrypt and the payload is sealed with NaCl secretbox. A random salt
// and nonce follow a fixed header, so encrypting the same file twice gives
// different output.
//
// # Local Artifacts
//
// WriteArtifacts writes <name>-<tag>.json (the exact secret string) and
// <name>-<tag>.yaml (the manifest mirror) with 0600 permissions. Tags are
// "<reason>-YYYYMMDD-HHMMSS" in UTC. FindLatest resolves doublestar globs
// to the newest artifact.
package secrets
