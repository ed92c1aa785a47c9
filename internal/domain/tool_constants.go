package domain

// RoutePrefix is the fixed prefix every tool path must begin with. Paths are
// unique across the registry and identify the tool's entry point.
const RoutePrefix = "/tools/"
