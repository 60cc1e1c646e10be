package fact

// Release identifies the engine release. Durable snapshots are keyed by
// release, so stores written by different releases never overwrite each
// other.
const Release = "0.1.0"
