package services

// Discord application command option types.
const (
	OptionSubCommand = 1
	OptionString     = 3
	OptionInteger    = 4
	OptionUser       = 6
)

type CommandChoice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CommandOption struct {
	Type        int             `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Required    bool            `json:"required,omitempty"`
	Choices     []CommandChoice `json:"choices,omitempty"`
	MinValue    *int            `json:"min_value,omitempty"`
	MaxValue    *int            `json:"max_value,omitempty"`
	Options     []CommandOption `json:"options,omitempty"`
}

// SlashCommand matches the body Discord expects when registering an
// application command.
type SlashCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

func intPtr(v int) *int {
	return &v
}

// SlashCommands lists the commands a Flowra bot registers with Discord.
func SlashCommands() []SlashCommand {
	statusChoices := []CommandChoice{
		{Name: "To do", Value: "todo"},
		{Name: "In progress", Value: "in_progress"},
		{Name: "Review", Value: "review"},
		{Name: "Done", Value: "done"},
	}

	priorityChoices := []CommandChoice{
		{Name: "Low", Value: "low"},
		{Name: "Medium", Value: "medium"},
		{Name: "High", Value: "high"},
		{Name: "Urgent", Value: "urgent"},
	}

	return []SlashCommand{
		{
			Name:        "tasks",
			Description: "List open tasks for this team",
			Options: []CommandOption{
				{Type: OptionString, Name: "status", Description: "Only tasks in this column", Choices: statusChoices},
				{Type: OptionUser, Name: "assignee", Description: "Only tasks assigned to this user"},
			},
		},
		{
			Name:        "task",
			Description: "Manage tasks",
			Options: []CommandOption{
				{
					Type:        OptionSubCommand,
					Name:        "create",
					Description: "Create a task",
					Options: []CommandOption{
						{Type: OptionString, Name: "title", Description: "Task title", Required: true},
						{Type: OptionString, Name: "priority", Description: "Task priority", Choices: priorityChoices},
						{Type: OptionUser, Name: "assignee", Description: "Who should do it"},
						{Type: OptionString, Name: "due", Description: "Due date (YYYY-MM-DD)"},
					},
				},
			},
		},
		{
			Name:        "remind",
			Description: "Send due-soon reminders now",
			Options: []CommandOption{
				{
					Type:        OptionInteger,
					Name:        "hours",
					Description: "Look-ahead window in hours",
					MinValue:    intPtr(1),
					MaxValue:    intPtr(168),
				},
			},
		},
		{
			Name:        "digest",
			Description: "Post today's task digest to this channel",
		},
	}
}
