package config

import (
	"fmt"
	"sync"
)

// OptionKey names one filter option
type OptionKey string

const (
	AllowImpassableHilliness          OptionKey = "allow_impassable_hilliness"
	AllowInvalidTilesForNewSettlement OptionKey = "allow_invalid_tiles_for_new_settlement"
	AllowLiveFiltering                OptionKey = "allow_live_filtering"
	DisablePreFilterCheck             OptionKey = "disable_prefilter_check"
	ResetAllFieldsOnNewGeneratedWorld OptionKey = "reset_all_fields_on_new_generated_world"
	ViewPartialOffNoSelect            OptionKey = "view_partial_off_no_select"
)

// OptionKeys lists every option in display order.
var OptionKeys = []OptionKey{
	AllowImpassableHilliness,
	AllowInvalidTilesForNewSettlement,
	AllowLiveFiltering,
	DisablePreFilterCheck,
	ResetAllFieldsOnNewGeneratedWorld,
	ViewPartialOffNoSelect,
}

// FilterOptions are the flags that gate engine behavior.
type FilterOptions struct {
	AllowImpassableHilliness          bool `yaml:"allow_impassable_hilliness" json:"allow_impassable_hilliness"`
	AllowInvalidTilesForNewSettlement bool `yaml:"allow_invalid_tiles_for_new_settlement" json:"allow_invalid_tiles_for_new_settlement"`
	AllowLiveFiltering                bool `yaml:"allow_live_filtering" json:"allow_live_filtering"`
	DisablePreFilterCheck             bool `yaml:"disable_prefilter_check" json:"disable_prefilter_check"`
	ResetAllFieldsOnNewGeneratedWorld bool `yaml:"reset_all_fields_on_new_generated_world" json:"reset_all_fields_on_new_generated_world"`

	// ViewPartialOffNoSelect is the default OffPartialNoSelect of new containers.
	ViewPartialOffNoSelect bool `yaml:"view_partial_off_no_select" json:"view_partial_off_no_select"`
}

// DefaultFilterOptions returns the out-of-the-box flags: everything off.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{}
}

// field returns a pointer to the flag named by key, or nil.
func (o *FilterOptions) field(key OptionKey) *bool {
	switch key {
	case AllowImpassableHilliness:
		return &o.AllowImpassableHilliness
	case AllowInvalidTilesForNewSettlement:
		return &o.AllowInvalidTilesForNewSettlement
	case AllowLiveFiltering:
		return &o.AllowLiveFiltering
	case DisablePreFilterCheck:
		return &o.DisablePreFilterCheck
	case ResetAllFieldsOnNewGeneratedWorld:
		return &o.ResetAllFieldsOnNewGeneratedWorld
	case ViewPartialOffNoSelect:
		return &o.ViewPartialOffNoSelect
	default:
		return nil
	}
}

// Get returns the value of one flag
func (o FilterOptions) Get(key OptionKey) (bool, error) {
	p := o.field(key)
	if p == nil {
		return false, fmt.Errorf("unknown option %q", key)
	}
	return *p, nil
}

// OptionListener is called after a flag changes value
type OptionListener func(key OptionKey, value bool)

// Options is the observable runtime option set.
type Options struct {
	mu        sync.RWMutex
	values    FilterOptions
	listeners map[int]OptionListener
	nextID    int
}

// NewOptions creates an option set with the given initial values
func NewOptions(initial FilterOptions) *Options {
	return &Options{
		values:    initial,
		listeners: make(map[int]OptionListener),
	}
}

// Values returns a copy of the current flags
func (o *Options) Values() FilterOptions {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.values
}

// Set changes one flag. Listeners only hear about actual changes.
func (o *Options) Set(key OptionKey, value bool) error {
	o.mu.Lock()
	p := o.values.field(key)
	if p == nil {
		o.mu.Unlock()
		return fmt.Errorf("unknown option %q", key)
	}
	if *p == value {
		o.mu.Unlock()
		return nil
	}
	*p = value

	listeners := make([]OptionListener, 0, len(o.listeners))
	for id := 0; id < o.nextID; id++ {
		if fn, ok := o.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
	return nil
}

// Subscribe registers a listener and returns a function that removes it.
func (o *Options) Subscribe(fn OptionListener) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}
