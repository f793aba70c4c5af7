package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
	"github.com/zayyadi/paroll-sub001/pkg/template"
)

func TestTemplate_Render(t *testing.T) {
	t.Parallel()

	t.Run("renders subject and body", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		out, err := reg.Render(string(notification.TypeLeaveRequestCreated), notification.ChannelEmail, "en", map[string]any{
			"employee_name": "Amina Bello",
			"leave_type":    "annual",
			"start_date":    "2025-07-01",
			"end_date":      "2025-07-05",
		})
		require.NoError(t, err)
		assert.Equal(t, "Leave request from Amina Bello", out.Subject)
		assert.Contains(t, out.Body, "Amina Bello requested annual leave")
		assert.NotContains(t, out.Body, "Reason:", "optional vars are omitted when absent")
	})

	t.Run("missing required variable", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		_, err := reg.Render(string(notification.TypeLeaveRequestCreated), notification.ChannelEmail, "en", map[string]any{
			"employee_name": "Amina Bello",
		})
		require.ErrorIs(t, err, template.ErrMissingVariable)
		assert.Contains(t, err.Error(), "leave_type")
	})

	t.Run("unknown type falls back to channel default", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		out, err := reg.Render("profile_updated", notification.ChannelEmail, "en", map[string]any{
			"title":   "Profile updated",
			"message": "Your bank details were changed.",
		})
		require.NoError(t, err)
		assert.Equal(t, "Profile updated", out.Subject)
		assert.Contains(t, out.Body, "Your bank details were changed.")
	})

	t.Run("unknown language falls back to default language", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		out, err := reg.Render(string(notification.TypePayrollProcessed), notification.ChannelEmail, "fr", map[string]any{
			"period":  "June 2025",
			"net_pay": "NGN 450,000",
		})
		require.NoError(t, err)
		assert.Contains(t, out.Subject, "June 2025")
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("higher version replaces", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		require.NoError(t, reg.Register(template.Template{
			Name: "custom", Channel: notification.ChannelSMS, Version: 1,
			Body: "v1 {{.x}}", RequiredVars: []string{"x"},
		}))
		require.NoError(t, reg.Register(template.Template{
			Name: "custom", Channel: notification.ChannelSMS, Version: 2,
			Body: "v2 {{.x}}", RequiredVars: []string{"x"},
		}))

		out, err := reg.Render("custom", notification.ChannelSMS, "en", map[string]any{"x": "ok"})
		require.NoError(t, err)
		assert.Equal(t, "v2 ok", out.Body)
	})

	t.Run("lower version is ignored", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		require.NoError(t, reg.Register(template.Template{
			Name: "custom", Channel: notification.ChannelSMS, Version: 3, Body: "v3",
		}))
		require.NoError(t, reg.Register(template.Template{
			Name: "custom", Channel: notification.ChannelSMS, Version: 1, Body: "v1",
		}))

		out, err := reg.Render("custom", notification.ChannelSMS, "en", nil)
		require.NoError(t, err)
		assert.Equal(t, "v3", out.Body)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		err := reg.Register(template.Template{
			Name: "bad", Channel: notification.ChannelEmail, Version: 1, Body: "{{.unclosed",
		})
		require.ErrorIs(t, err, template.ErrInvalidTemplate)
	})

	t.Run("rejects unknown channel", func(t *testing.T) {
		t.Parallel()
		reg := template.NewRegistry()

		err := reg.Register(template.Template{Name: "bad", Channel: "fax", Version: 1})
		require.ErrorIs(t, err, template.ErrInvalidTemplate)
	})
}
