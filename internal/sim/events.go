package sim

// MemberAdded is published after a member joins the registry.
type MemberAdded struct {
	ID   ID
	Kind Kind
}

// MemberRemoved is published after a member is detached, before its
// dependents cascade.
type MemberRemoved struct {
	ID   ID
	Kind Kind
}

// PeriodBegan is published at the start of a Run call.
type PeriodBegan struct {
	Period uint64
}

// PeriodEnded is published when a Run call completes successfully.
type PeriodEnded struct {
	Period          uint64
	IntraIterations int
}
