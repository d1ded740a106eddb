package context

type Key string

const (
	Claims       Key = "claims"
	Caller       Key = "caller"
	Organization Key = "organization"
	Params       Key = "params"
)
