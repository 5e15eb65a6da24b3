package cli

import (
	"github.com/spf13/pflag"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/workflow"
)

// stateValue is a pflag.Value accepting a state name or its integer code.
type stateValue struct {
	state model.State
	set   bool
}

var _ pflag.Value = (*stateValue)(nil)

func (v *stateValue) String() string {
	if !v.set {
		return ""
	}
	return v.state.String()
}

func (v *stateValue) Set(s string) error {
	st, err := model.ParseState(s)
	if err != nil {
		return err
	}
	v.state, v.set = st, true
	return nil
}

func (v *stateValue) Type() string { return "state" }

// cacheTypeValue is a pflag.Value for --type on the cache commands.
type cacheTypeValue struct {
	t model.CacheType
}

var _ pflag.Value = (*cacheTypeValue)(nil)

func (v *cacheTypeValue) String() string { return v.t.String() }

func (v *cacheTypeValue) Set(s string) error {
	t, err := model.ParseCacheType(s)
	if err != nil {
		return err
	}
	v.t = t
	return nil
}

func (v *cacheTypeValue) Type() string { return "cache-type" }

// dayValue is a pflag.Value for --day ("2006-01-02"); empty means today.
type dayValue struct {
	day model.Day
}

var _ pflag.Value = (*dayValue)(nil)

func (v *dayValue) String() string { return string(v.day) }

func (v *dayValue) Set(s string) error {
	d, err := model.ParseDay(s)
	if err != nil {
		return err
	}
	v.day = d
	return nil
}

func (v *dayValue) Type() string { return "day" }

// counterFlags binds --counter and --counter-name.
type counterFlags struct {
	id   int64
	name string
}

func (c *counterFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&c.id, "counter", 0, "counter id")
	fs.StringVar(&c.name, "counter-name", "", "counter name (looked up from the id when empty)")
}

// ref returns the counter reference, or nil when no counter flag was given.
func (c *counterFlags) ref(fs *pflag.FlagSet) *workflow.CounterRef {
	if !fs.Changed("counter") && !fs.Changed("counter-name") {
		return nil
	}
	return &workflow.CounterRef{ID: c.id, Name: c.name}
}
