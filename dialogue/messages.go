package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/counterbot/core/telegram/format"
	"github.com/m3rciful/counterbot/counters"
)

// Action keyboard labels.
const (
	ActionIncrement = "Increment"
	ActionDecrement = "Decrement"
	ActionChange    = "Change Value"
	ActionDelete    = "Delete Counter"
	ActionCancel    = "Cancel"
)

var actionKeyboard = [][]string{
	{ActionIncrement, ActionDecrement},
	{ActionChange},
	{ActionDelete},
	{ActionCancel},
}

var confirmKeyboard = [][]string{{"Yes", "No"}}

const (
	msgAskName         = "Please provide the name of the counter:"
	msgAskInitialValue = "Please provide the initial value of the counter:"
	msgBadInitialValue = "Invalid initial value. Please provide a valid number."
	msgNoCounters      = "You have no counters. Create one with /createcounter."
	msgBadSelection    = "Invalid selection. Send /counters to try again."
	msgBadAction       = "Unknown action. Send /counters to start over."
	msgBadNewValue     = "Invalid value. Nothing was changed; send /counters to try again."
	msgActionCancelled = "Action cancelled."
	msgDeleteCancelled = "Counter deletion cancelled."
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."

	errCreate    = "An error occurred while creating the counter."
	errFetch     = "An error occurred while fetching your counters."
	errIncrement = "An error occurred while incrementing the counter."
	errDecrement = "An error occurred while decrementing the counter."
	errChange    = "An error occurred while changing the counter value."
	errDelete    = "An error occurred while deleting the counter."
)

func welcome(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = "there"
	}
	return fmt.Sprintf(`Hello, %s! Welcome to your personal counter bot. 🙌

Here are some commands you can use:
- /createcounter: Create a new counter.
- /listcounters: View all your counters.
- /counters: Manage your counters (Increment, Decrement, Change Value, Delete).
- /cancel: Abandon the current step.

Start by creating a new counter with /createcounter or check your existing counters with /listcounters.`, sender)
}

func badName(err error) string {
	var v *counters.ValidationError
	if errors.As(err, &v) {
		return fmt.Sprintf("The counter name %s. Please provide another name:", v.Reason)
	}
	return "Invalid name. Please provide another name:"
}

func created(name string, value int64) string {
	return fmt.Sprintf("Counter \"%s\" with initial value \"%d\" has been created successfully.", name, value)
}

// listing renders counters for the Markdown parse mode.
func listing(list []counters.Counter) string {
	items := make([]string, 0, len(list))
	for _, c := range list {
		items = append(items, fmt.Sprintf("🎯 *%s*:\n   ➡️ *Value:* %d", format.Markdown(c.Name), c.Value))
	}
	return "Here are your counters:\n\n" + strings.Join(items, "\n\n")
}

func selectionPrompt(list []counters.Counter) string {
	var b strings.Builder
	b.WriteString("Here are your counters:\n")
	for i, c := range list {
		fmt.Fprintf(&b, "%d. %s - Value: %d\n", i+1, c.Name, c.Value)
	}
	b.WriteString("\nPlease choose a counter by typing its number.")
	return b.String()
}

func selected(c counters.Counter) string {
	return fmt.Sprintf("You selected: %s - Value: %d\nWhat would you like to do next? Choose from the keyboard below.", c.Name, c.Value)
}

func incremented(name string, delta, value int64) string {
	verb := "incremented"
	if delta < 0 {
		verb, delta = "decremented", -delta
	}
	return fmt.Sprintf("The counter \"%s\" has been %s by %d. New value: %d", name, verb, delta, value)
}

func askNewValue(name string) string {
	return fmt.Sprintf("Please provide the new value for \"%s\":", name)
}

func updated(name string, value int64) string {
	return fmt.Sprintf("The counter \"%s\" has been updated to %d.", name, value)
}

func confirmDelete(name string) string {
	return fmt.Sprintf("Are you sure you want to delete the counter \"%s\"? This action cannot be undone. Type \"Yes\" to confirm or \"No\" to cancel.", name)
}

func deleted(name string) string {
	return fmt.Sprintf("The counter \"%s\" has been deleted.", name)
}

func atLimit(name string) string {
	return fmt.Sprintf("The counter \"%s\" is already at its limit and was not changed.", name)
}

func gone(name string) string {
	return fmt.Sprintf("The counter \"%s\" no longer exists. Send /counters to pick another one.", name)
}
