// Package actions runs a batch of reversible install steps as one unit.
//
// A Stack executes pushed actions strictly in order. When a forward step
// fails, the reverse step of every completed action runs, last completed
// first, and the original failure is returned. Failures while rolling back
// are logged and attached to the returned error; they never replace it.
package actions

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/plugsmith/internal/plugin"
)

// Op names the direction a step moves an item.
type Op string

const (
	OpInstall   Op = "install"
	OpUninstall Op = "uninstall"
)

// Inverse returns the opposite direction.
func (o Op) Inverse() Op {
	if o == OpInstall {
		return OpUninstall
	}
	return OpInstall
}

// Step is one direction of an action. Run is bound to the action's item,
// plugin and target when the action is built.
type Step struct {
	Op  Op
	Run func(ctx context.Context) error
}

// Action pairs a forward step with its exact inverse. Both steps close over
// the same item and plugin; the remaining fields are plain data for
// diagnostics and the journal.
type Action struct {
	Name     string
	Kind     plugin.ItemKind
	PluginID string
	Item     plugin.Item
	Forward  Step
	Reverse  Step
}

// String renders a single diagnostic line, e.g.
// "install js-module www/foo.js [com.example.foo]".
func (a Action) String() string {
	name := a.Name
	if name == "" && a.Item != nil {
		name = a.Item.Describe()
	}
	return fmt.Sprintf("%s %s [%s]", a.Forward.Op, name, a.PluginID)
}

// New builds an action for item whose forward step runs fwd in direction op
// and whose reverse step runs rev.
func New(pluginID string, item plugin.Item, op Op, fwd, rev func(ctx context.Context) error) Action {
	return Action{
		Name:     item.Describe(),
		Kind:     item.Kind(),
		PluginID: pluginID,
		Item:     item,
		Forward:  Step{Op: op, Run: fwd},
		Reverse:  Step{Op: op.Inverse(), Run: rev},
	}
}
