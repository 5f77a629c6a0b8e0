package store

// maxPageLimit is a defense-in-depth cap on the page size of audit queries.
const maxPageLimit = 1000

// maxListLimit caps catalog list queries.
const maxListLimit = 1000
