package utils

// REVISION is stamped into every API envelope so client builds can be
// matched against the backend they spoke to.
const REVISION = "1.4.2"
