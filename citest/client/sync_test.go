package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/pocketcode/citest/testutil"
	"github.com/opencode-ai/pocketcode/internal/app"
	"github.com/opencode-ai/pocketcode/internal/config"
	"github.com/opencode-ai/pocketcode/internal/live"
	"github.com/opencode-ai/pocketcode/internal/stream"
	"github.com/opencode-ai/pocketcode/pkg/types"
)

var _ = Describe("Session Synchronization", func() {
	var (
		fake   *testutil.FakeServer
		a      *app.App
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		fake = testutil.StartFakeServer()
		fake.AddSession(types.Session{
			ID:    "ses_a",
			Title: "alpha",
			Time:  types.SessionTime{Created: 100, Updated: 100},
		})
		fake.SetMessages("ses_a", []types.MessageWithParts{})

		a = app.New(&config.Config{}, GinkgoT().TempDir())
		Expect(a.Start(ctx)).To(Succeed())

		cfg, err := a.Registry.AddServer(ctx, "test", fake.URL())
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Registry.SetActiveServer(ctx, cfg.ID)).To(Succeed())

		// Connecting auto-selects the fake's first project, which brings
		// the event channel up.
		Eventually(fake.SubscriberCount, 2*time.Second).Should(Equal(1))
		Eventually(a.Channel.State, 2*time.Second).Should(Equal(stream.StateOpen))
	})

	AfterEach(func() {
		cancel()
		a.Close()
		fake.Close()
	})

	Describe("session list", func() {
		It("serves the initial fetch from the server", func() {
			sessions, err := a.Cache.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(1))
			Expect(sessions[0].ID).To(Equal("ses_a"))
		})

		It("converges on session events without refetching", func() {
			_, err := a.Cache.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())

			created := types.Session{
				ID:    "ses_b",
				Title: "beta",
				Time:  types.SessionTime{Created: 200, Updated: 200},
			}
			fake.AddSession(created)
			fake.Emit(types.EventSessionCreated, types.SessionPayload{Info: created})

			Eventually(func() []string {
				sessions, err := a.Cache.Sessions(ctx)
				if err != nil {
					return nil
				}
				ids := make([]string, len(sessions))
				for i, s := range sessions {
					ids[i] = s.ID
				}
				return ids
			}, 2*time.Second).Should(Equal([]string{"ses_b", "ses_a"}))
		})

		It("drops deleted sessions from the list", func() {
			_, err := a.Cache.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())

			fake.Emit(types.EventSessionDeleted, types.SessionPayload{Info: types.Session{ID: "ses_a"}})

			Eventually(func() int {
				sessions, _ := a.Cache.Sessions(ctx)
				return len(sessions)
			}, 2*time.Second).Should(BeZero())
		})
	})

	Describe("live view", func() {
		BeforeEach(func() {
			a.View.Enter("ses_a")
		})

		It("streams message and part updates into the buffer", func() {
			msg := types.Message{ID: "msg_1", SessionID: "ses_a", Role: "assistant"}
			fake.Emit(types.EventMessageUpdated, types.MessageUpdatedPayload{Info: msg})
			fake.Emit(types.EventMessagePartUpdated, types.MessagePartUpdatedPayload{
				Part: types.Part{
					ID: "prt_1", MessageID: "msg_1", SessionID: "ses_a",
					Type: types.PartText, Text: "hello",
				},
			})

			Eventually(func() string {
				snap := a.View.Snapshot()
				if len(snap.Messages) != 1 || len(snap.Messages[0].Parts) != 1 {
					return ""
				}
				return snap.Messages[0].Parts[0].Text
			}, 2*time.Second).Should(Equal("hello"))
		})

		It("replaces a re-sent part instead of duplicating it", func() {
			msg := types.Message{ID: "msg_1", SessionID: "ses_a", Role: "assistant"}
			part := types.Part{
				ID: "prt_1", MessageID: "msg_1", SessionID: "ses_a",
				Type: types.PartText, Text: "hello",
			}
			fake.Emit(types.EventMessageUpdated, types.MessageUpdatedPayload{Info: msg})
			fake.Emit(types.EventMessagePartUpdated, types.MessagePartUpdatedPayload{Part: part})

			part.Text = "hello world"
			fake.Emit(types.EventMessagePartUpdated, types.MessagePartUpdatedPayload{Part: part})

			Eventually(func() string {
				snap := a.View.Snapshot()
				if len(snap.Messages) != 1 || len(snap.Messages[0].Parts) != 1 {
					return ""
				}
				return snap.Messages[0].Parts[0].Text
			}, 2*time.Second).Should(Equal("hello world"))
		})

		It("ignores the seeded fetch once events arrived", func() {
			msg := types.Message{ID: "msg_1", SessionID: "ses_a", Role: "assistant"}
			fake.Emit(types.EventMessageUpdated, types.MessageUpdatedPayload{Info: msg})

			Eventually(func() live.Snapshot { return a.View.Snapshot() }, 2*time.Second).
				Should(WithTransform(func(s live.Snapshot) bool { return s.Live }, BeTrue()))

			a.View.Seed("ses_a", nil, nil, types.SessionStatus{Type: types.StatusIdle})
			Expect(a.View.Snapshot().Messages).To(HaveLen(1))
		})

		It("settles to idle on session.idle", func() {
			fake.Emit(types.EventSessionStatus, types.SessionStatusPayload{
				SessionID: "ses_a",
				Status:    types.SessionStatus{Type: types.StatusBusy},
			})
			Eventually(func() string { return a.View.Snapshot().Status.Type }, 2*time.Second).
				Should(Equal(types.StatusBusy))

			fake.Emit(types.EventSessionIdle, types.SessionIdlePayload{SessionID: "ses_a"})
			Eventually(func() string { return a.View.Snapshot().Status.Type }, 2*time.Second).
				Should(Equal(types.StatusIdle))
		})
	})

	Describe("mutations", func() {
		It("submits prompts to the server and marks the session busy", func() {
			_, err := a.Cache.Status(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Cache.SendPrompt(ctx, "ses_a", "do the thing", nil, "build")).To(Succeed())

			prompts := fake.Prompts()
			Expect(prompts).To(HaveLen(1))
			Expect(prompts[0].SessionID).To(Equal("ses_a"))

			status, err := a.Cache.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(status["ses_a"].Type).To(Equal(types.StatusBusy))
		})

		It("round-trips permission requests", func() {
			fake.Emit(types.EventPermissionUpdated, types.PermissionUpdatedPayload{
				Permission: types.Permission{ID: "perm_1", SessionID: "ses_a", Title: "run command"},
			})
			Eventually(a.View.Permissions, 2*time.Second).Should(HaveLen(1))

			Expect(a.Cache.RespondPermission(ctx, "ses_a", "perm_1", "once")).To(Succeed())

			replies := fake.PermissionReplies()
			Expect(replies).To(HaveLen(1))
			Expect(replies[0].PermissionID).To(Equal("perm_1"))
			Expect(replies[0].Response).To(Equal("once"))
		})
	})

	Describe("reconnect", func() {
		It("recovers after the stream drops", func() {
			fake.DropStreams()
			Eventually(a.Channel.State, 2*time.Second).Should(Equal(stream.StateError))

			// A single attempt fires after the fixed delay.
			Eventually(fake.SubscriberCount, 2*stream.ReconnectDelay).Should(Equal(1))
			Eventually(a.Channel.State, 2*time.Second).Should(Equal(stream.StateOpen))
		})
	})
})
