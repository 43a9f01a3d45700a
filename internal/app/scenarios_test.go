package app_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kidcolor/colorbook/internal/app"
	"github.com/kidcolor/colorbook/internal/connectivity"
	"github.com/kidcolor/colorbook/internal/event"
	"github.com/kidcolor/colorbook/internal/search"
	"github.com/kidcolor/colorbook/pkg/types"
)

var twoRegions = types.Template{
	Palette: []string{"#f00", "#0f0"},
	Regions: []types.Region{{ID: "r1"}, {ID: "r2"}},
}

var _ = Describe("Editing", func() {
	var (
		h   *harness
		ctx context.Context
		p   *types.Project
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness(true, app.Options{})

		var err error
		p, err = h.app.Projects.Create(ctx, "proj_1", twoRegions)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.app.Editor.Open(ctx, p.ID)).To(Succeed())
	})

	It("undoes a single edit back to the uncolored drawing", func() {
		uncolored, err := h.app.Editor.Current()
		Expect(err).NotTo(HaveOccurred())

		changed, err := h.app.Editor.Paint(ctx, "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(BeTrue())

		history := h.app.Editor.History()
		Expect(history.UndoDepth()).To(Equal(1))

		Expect(h.app.Editor.Undo(ctx)).To(BeTrue())
		Expect(h.app.Editor.Current()).To(Equal(uncolored))
		Expect(history.RedoDepth()).To(Equal(1))
	})

	It("keeps only the last 20 edits", func() {
		Expect(h.app.Editor.History().Limit()).To(Equal(20))

		for i := 0; i < 21; i++ {
			Expect(h.app.Editor.SelectColor(ctx, i%2)).To(Succeed())
			region := "r1"
			if i%4 >= 2 {
				region = "r2"
			}
			changed, err := h.app.Editor.Paint(ctx, region)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue(), "edit %d", i)
		}
		Expect(h.app.Editor.History().UndoDepth()).To(Equal(20))

		for i := 0; i < 20; i++ {
			Expect(h.app.Editor.Undo(ctx)).To(BeTrue(), "undo %d", i)
		}
		Expect(h.app.Editor.Undo(ctx)).To(BeFalse())

		cur, err := h.app.Editor.Current()
		Expect(err).NotTo(HaveOccurred())
		Expect(cur.IsEmpty()).To(BeFalse(), "the state before the first edit is gone")
	})

	It("restores saved progress on reopen", func() {
		Expect(h.app.Editor.Paint(ctx, "r2")).To(BeTrue())
		h.app.Editor.Close()

		opened, err := h.app.OpenLast(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(opened).To(BeTrue())

		cur, err := h.app.Editor.Current()
		Expect(err).NotTo(HaveOccurred())
		Expect(cur.Fill("r2")).To(Equal("#f00"))
		Expect(h.app.Editor.CanUndo()).To(BeFalse())
	})
})

var _ = Describe("Offline search", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("queues while offline and replays once after reconnecting", func() {
		h := newHarness(false, app.Options{Vectorizer: twoRegionVectorizer})

		out, err := h.app.Search(ctx, "dinosaur")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Queued).To(BeTrue())
		Expect(out.RequestID).To(HavePrefix("req_"))
		Expect(h.app.Queue.Len(ctx)).To(Equal(1))
		Expect(h.api.searches.Load()).To(BeZero())
		Expect(h.Notes()).To(ContainElement(HaveField("Message", ContainSubstring("will run when you reconnect"))))

		Expect(h.app.SetOnline(true)).To(BeTrue())
		h.app.Sync.Wait()

		Expect(h.prompter.Asked()).To(Equal([]int{1}))
		Expect(h.States()).To(Equal([]string{"prompting", "replaying", "idle"}))
		Expect(h.api.Queries()).To(Equal([]string{"dinosaur"}))
		Expect(h.app.Queue.ListAll(ctx)).To(BeEmpty())

		projects, err := h.app.Projects.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(projects).To(HaveLen(1))
		Expect(projects[0].Name).To(Equal("dinosaur"))
	})

	It("clears the queue even when the replayed search fails", func() {
		h := newHarness(false, app.Options{})
		h.api.down.Store(true)

		var failed []event.ReplayFailedData
		h.app.Bus.Subscribe(event.ReplayFailed, func(e event.Event) {
			failed = append(failed, e.Data.(event.ReplayFailedData))
		})

		_, err := h.app.Search(ctx, "dinosaur")
		Expect(err).NotTo(HaveOccurred())

		Expect(h.app.SetOnline(true)).To(BeTrue())
		h.app.Sync.Wait()

		Expect(h.api.searches.Load()).To(BeNumerically(">=", 1))
		Expect(h.app.Queue.ListAll(ctx)).To(BeEmpty())
		Expect(failed).To(HaveLen(1))
		Expect(h.app.Sync.State().String()).To(Equal("idle"))
	})

	It("leaves the queue alone when the user declines", func() {
		h := newHarness(false, app.Options{})
		h.prompter.answer = false

		_, err := h.app.Search(ctx, "cat")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.app.SetOnline(true)).To(BeTrue())
		h.app.Sync.Wait()

		Expect(h.prompter.Asked()).To(Equal([]int{1}))
		Expect(h.api.Queries()).To(BeEmpty())
		Expect(h.app.Queue.Len(ctx)).To(Equal(1))
	})

	It("replays queued searches in the order they were made", func() {
		h := newHarness(false, app.Options{})
		for i := 0; i < 5; i++ {
			_, err := h.app.Search(ctx, fmt.Sprintf("animal %d", i))
			Expect(err).NotTo(HaveOccurred())
		}

		report, err := h.app.Sync.CheckOfflineQueue(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Replayed).To(HaveLen(5))
		Expect(h.api.Queries()).To(Equal([]string{"animal 0", "animal 1", "animal 2", "animal 3", "animal 4"}))
	})

	It("offers saved searches again after a restart", func() {
		first := newHarness(false, app.Options{})
		_, err := first.app.Search(ctx, "dinosaur")
		Expect(err).NotTo(HaveOccurred())
		Expect(first.app.Close()).To(Succeed())

		prompter := &recordingPrompter{answer: true}
		second := newHarness(true, app.Options{Paths: first.paths, Prompter: prompter})

		Expect(prompter.Asked()).To(Equal([]int{1}))
		Expect(second.api.Queries()).To(Equal([]string{"dinosaur"}))
		Expect(second.app.Queue.Len(ctx)).To(BeZero())
	})

	It("does not prompt when going offline", func() {
		h := newHarness(true, app.Options{})
		Expect(h.app.SetOnline(false)).To(BeTrue())
		h.app.Sync.Wait()

		Expect(h.prompter.Asked()).To(BeEmpty())
		Expect(connectivity.ReadStatus(h.app.StatusFile())).To(BeFalse())
	})
})

var _ = Describe("Online search", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("rejects a blank query", func() {
		h := newHarness(true, app.Options{})
		_, err := h.app.Search(ctx, "   ")
		Expect(err).To(MatchError(app.ErrEmptyQuery))
		Expect(h.app.Queue.Len(ctx)).To(BeZero())
	})

	It("reports the image url without a vectorizer", func() {
		h := newHarness(true, app.Options{})
		out, err := h.app.Search(ctx, "owl")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Queued).To(BeFalse())
		Expect(out.Result.URL).To(HaveSuffix("/img/owl"))
		Expect(out.Project).To(BeNil())
		Expect(h.Notes()).To(ContainElement(HaveField("Message", ContainSubstring("/img/owl"))))
	})

	It("creates a project with a vectorizer", func() {
		h := newHarness(true, app.Options{Vectorizer: twoRegionVectorizer})
		out, err := h.app.Search(ctx, "owl")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Project).NotTo(BeNil())
		Expect(out.Project.Name).To(Equal("owl"))

		_, found, err := h.app.Projects.Get(ctx, out.Project.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
	})

	It("tells not found apart from failure", func() {
		h := newHarness(true, app.Options{})
		h.api.mu.Lock()
		h.api.empty["zzz"] = true
		h.api.mu.Unlock()

		_, err := h.app.Search(ctx, "zzz")
		Expect(err).To(MatchError(search.ErrNotFound))
		Expect(h.Notes()).To(ContainElement(HaveField("Level", event.LevelInfo)))

		h.api.down.Store(true)
		_, err = h.app.Search(ctx, "owl")
		Expect(err).To(MatchError(search.ErrNetwork))
		Expect(h.Notes()).To(ContainElement(HaveField("Level", event.LevelError)))
	})
})
