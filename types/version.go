package types

// Version is the canonical project version.
// The CLI and the ingest wire protocol share this version
// per the lockstep versioning policy.
const Version = "0.3.0"

// ProtocolVersion is the ingest wire protocol version announced in the
// auth handshake. Lockstep with Version.
const ProtocolVersion = Version
