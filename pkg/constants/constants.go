package constants

// Version is reported to clients through the "meta" event.
const Version = "0.3.0"
