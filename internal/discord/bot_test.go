package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/eric-livezey/void-bot/internal/discord/mock"
)

func commandInteraction(name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{Name: name},
		},
	}
}

func componentInteraction(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: customID},
		},
	}
}

func TestPermissionChecker_IsDJ(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		djRoleID string
		member   *discordgo.Member
		want     bool
	}{
		{
			name:     "member with DJ role",
			djRoleID: "role-123",
			member:   &discordgo.Member{Roles: []string{"role-456", "role-123", "role-789"}},
			want:     true,
		},
		{
			name:     "member without DJ role",
			djRoleID: "role-123",
			member:   &discordgo.Member{Roles: []string{"role-456", "role-789"}},
			want:     false,
		},
		{
			name:     "empty DJ role allows all members",
			djRoleID: "",
			member:   &discordgo.Member{Roles: []string{"role-456"}},
			want:     true,
		},
		{
			name:     "nil member is never a DJ",
			djRoleID: "",
			member:   nil,
			want:     false,
		},
		{
			name:     "member with empty roles",
			djRoleID: "role-123",
			member:   &discordgo.Member{Roles: []string{}},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pc := NewPermissionChecker(tt.djRoleID)
			i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Member: tt.member}}
			if got := pc.IsDJ(i); got != tt.want {
				t.Errorf("IsDJ() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	t.Parallel()

	guild := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "member-1"}},
	}}
	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "user-1"},
	}}
	if got := UserID(guild); got != "member-1" {
		t.Errorf("guild UserID = %q, want member-1", got)
	}
	if got := UserID(dm); got != "user-1" {
		t.Errorf("DM UserID = %q, want user-1", got)
	}
	if got := UserID(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); got != "" {
		t.Errorf("empty UserID = %q", got)
	}
}

func TestCommandRouter_ApplicationCommands(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	r.RegisterCommand(&discordgo.ApplicationCommand{Name: "play"}, func(Responder, *discordgo.InteractionCreate) {})
	r.RegisterCommand(&discordgo.ApplicationCommand{Name: "skip"}, func(Responder, *discordgo.InteractionCreate) {})
	// Re-registering replaces the previous entry.
	r.RegisterCommand(&discordgo.ApplicationCommand{Name: "play"}, func(Responder, *discordgo.InteractionCreate) {})

	if got := len(r.ApplicationCommands()); got != 2 {
		t.Fatalf("expected 2 commands, got %d", got)
	}
}

func TestCommandRouter_Dispatch(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	var got []string
	r.RegisterCommand(&discordgo.ApplicationCommand{Name: "play"}, func(Responder, *discordgo.InteractionCreate) {
		got = append(got, "play")
	})
	r.RegisterComponent("refresh", func(Responder, *discordgo.InteractionCreate) {
		got = append(got, "refresh")
	})
	r.RegisterComponentPrefix("queue_page:", func(_ Responder, i *discordgo.InteractionCreate) {
		got = append(got, i.MessageComponentData().CustomID)
	})

	s := &mock.InteractionResponder{}
	r.Handle(s, commandInteraction("play"))
	r.Handle(s, componentInteraction("refresh"))
	r.Handle(s, componentInteraction("queue_page:2"))

	want := []string{"play", "refresh", "queue_page:2"}
	if len(got) != len(want) {
		t.Fatalf("handled %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("handled[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(s.Responses) != 0 {
		t.Errorf("router responded itself %d times", len(s.Responses))
	}
}

func TestCommandRouter_Unknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		i    *discordgo.InteractionCreate
		want string
	}{
		{"command", commandInteraction("nope"), "Unknown command."},
		{"component", componentInteraction("nope"), "Unknown component."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := &mock.InteractionResponder{}
			NewCommandRouter().Handle(s, tc.i)

			resp := s.LastResponse()
			if resp == nil {
				t.Fatal("no response sent")
			}
			if resp.Data.Content != tc.want {
				t.Errorf("content = %q, want %q", resp.Data.Content, tc.want)
			}
			if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
				t.Error("unknown interaction response should be ephemeral")
			}
		})
	}
}

func TestRespondHelpers(t *testing.T) {
	t.Parallel()

	s := &mock.InteractionResponder{}
	i := commandInteraction("x")
	embed := &discordgo.MessageEmbed{Title: "Song"}

	RespondText(s, i, "hello")
	RespondEmbed(s, i, "**Now Playing**:", embed)
	RespondError(s, i, errors.New("boom"))
	UpdateMessage(s, i, &discordgo.InteractionResponseData{Content: "page 2"})
	DeferReply(s, i)
	FollowUp(s, i, "done")
	FollowUpEmbed(s, i, "**Removed**:", embed)

	wantTypes := []discordgo.InteractionResponseType{
		discordgo.InteractionResponseChannelMessageWithSource,
		discordgo.InteractionResponseChannelMessageWithSource,
		discordgo.InteractionResponseChannelMessageWithSource,
		discordgo.InteractionResponseUpdateMessage,
		discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if len(s.Responses) != len(wantTypes) {
		t.Fatalf("responses = %d, want %d", len(s.Responses), len(wantTypes))
	}
	for n, want := range wantTypes {
		if s.Responses[n].Type != want {
			t.Errorf("response[%d].Type = %v, want %v", n, s.Responses[n].Type, want)
		}
	}
	if s.Responses[0].Data.Flags&discordgo.MessageFlagsEphemeral != 0 {
		t.Error("RespondText should be public")
	}
	if got := s.Responses[2].Data.Content; got != "Error: boom" {
		t.Errorf("error content = %q", got)
	}
	if len(s.FollowUps) != 2 || s.FollowUps[1].Embeds[0] != embed {
		t.Errorf("follow-ups = %+v", s.FollowUps)
	}
}

func TestRespond_ErrorIsLoggedNotPanicking(t *testing.T) {
	t.Parallel()

	s := &mock.InteractionResponder{Err: errors.New("http 500")}
	i := commandInteraction("x")
	RespondEphemeral(s, i, "hi")
	FollowUp(s, i, "hi")
	if len(s.Responses) != 1 || len(s.FollowUps) != 1 {
		t.Error("calls were not recorded")
	}
}
