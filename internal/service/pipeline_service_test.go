package service_test

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"weave/internal/domain"
	"weave/internal/service"
)

// fakeCompleter scripts completion responses and records prompts.
type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	lastSys  string
	lastUser string
	block    chan struct{} // when set, calls wait until released
}

func (f *fakeCompleter) GenerateText(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastSys, f.lastUser = system, user
	blocker := f.block
	f.mu.Unlock()
	if blocker != nil {
		<-blocker
	}
	return f.reply, f.err
}

func (f *fakeCompleter) GenerateWithAttachment(ctx context.Context, prompt string, _ []byte, _ string) (string, error) {
	return f.GenerateText(ctx, prompt, "")
}

func (f *fakeCompleter) GenerateGrounded(ctx context.Context, prompt, url string) (string, error) {
	return f.GenerateText(ctx, prompt, url)
}

func newPipelines(env *testEnv, completer *fakeCompleter) *service.PipelineService {
	return service.NewPipelineService(env.graph, env.blocks, completer, env.rag, env.emitter, zap.NewNop())
}

func TestRefineScenario(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "polished text"}
	pipelines := newPipelines(env, completer)

	src := env.block(t, ws.ID, domain.BlockTypeNote)
	content := "rough draft about bayes"
	if _, err := env.graph.UpdateBlock(ctx, src.ID, service.BlockPatch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	target := env.block(t, ws.ID, domain.BlockTypeRefinement)
	if _, err := env.graph.UpdateBlock(ctx, target.ID, service.BlockPatch{Chat: &domain.ChatData{Instruction: "tighten the prose"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.graph.AddConnection(ctx, src.ID, target.ID); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.Refine(ctx, target.ID); err != nil {
		t.Fatalf("refine: %v", err)
	}

	got, err := env.graph.GetBlock(target.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "polished text" {
		t.Errorf("content = %q", got.Content)
	}
	if got.IsProcessing {
		t.Error("isProcessing should be cleared after the pipeline")
	}
	if completer.calls != 1 {
		t.Errorf("completion calls = %d, want exactly 1", completer.calls)
	}
	if !strings.Contains(completer.lastUser, "rough draft about bayes") {
		t.Errorf("source material missing from prompt: %q", completer.lastUser)
	}
}

func TestRefineWithoutInputsIsPrecondition(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "should not run"}
	pipelines := newPipelines(env, completer)

	target := env.block(t, ws.ID, domain.BlockTypeRefinement)
	err := pipelines.Refine(ctx, target.ID)
	if !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if completer.calls != 0 {
		t.Error("no completion call on failed precondition")
	}
	got, _ := env.graph.GetBlock(target.ID)
	if got.IsProcessing {
		t.Error("precondition failure must not mutate the block")
	}
}

func TestRefineWithoutInstructionIsPrecondition(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "should not run"}
	pipelines := newPipelines(env, completer)

	src := env.block(t, ws.ID, domain.BlockTypeNote)
	content := "draft"
	if _, err := env.graph.UpdateBlock(ctx, src.ID, service.BlockPatch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	target := env.block(t, ws.ID, domain.BlockTypeRefinement)
	if _, err := env.graph.AddConnection(ctx, src.ID, target.ID); err != nil {
		t.Fatal(err)
	}

	// connected input but no instruction on the block
	err := pipelines.Refine(ctx, target.ID)
	if !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", completer.calls)
	}
	got, _ := env.graph.GetBlock(target.ID)
	if got.IsProcessing || got.Content != "" {
		t.Error("precondition failure must not mutate the block")
	}
}

func TestRefineFailurePersistsFallbackString(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{err: errors.New("provider down")}
	pipelines := newPipelines(env, completer)

	src := env.block(t, ws.ID, domain.BlockTypeNote)
	content := "draft"
	if _, err := env.graph.UpdateBlock(ctx, src.ID, service.BlockPatch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	target := env.block(t, ws.ID, domain.BlockTypeRefinement)
	if _, err := env.graph.UpdateBlock(ctx, target.ID, service.BlockPatch{Chat: &domain.ChatData{Instruction: "shorten"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.graph.AddConnection(ctx, src.ID, target.ID); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.Refine(ctx, target.ID); err != nil {
		t.Fatalf("refine should not surface provider errors: %v", err)
	}
	got, _ := env.graph.GetBlock(target.ID)
	if !strings.HasPrefix(got.Content, "Failed to ") {
		t.Errorf("content = %q, want a Failed to ... fallback", got.Content)
	}
	if got.IsProcessing {
		t.Error("isProcessing should be cleared even on failure")
	}
}

func TestChatOptimisticAppend(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "model reply"}
	pipelines := newPipelines(env, completer)

	chat := env.block(t, ws.ID, domain.BlockTypeChat)
	if err := pipelines.Chat(ctx, chat.ID, "first question"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	got, _ := env.graph.GetBlock(chat.ID)
	h := got.Chat.History
	if len(h) != 2 {
		t.Fatalf("history = %d entries, want 2", len(h))
	}
	if h[0].Role != domain.RoleUser || h[0].Text != "first question" {
		t.Errorf("h[0] = %+v", h[0])
	}
	if h[1].Role != domain.RoleModel || h[1].Text != "model reply" {
		t.Errorf("h[1] = %+v", h[1])
	}
}

func TestChatFailureKeepsUserMessage(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{err: errors.New("timeout")}
	pipelines := newPipelines(env, completer)

	chat := env.block(t, ws.ID, domain.BlockTypeChat)
	if err := pipelines.Chat(ctx, chat.ID, "hello"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	got, _ := env.graph.GetBlock(chat.ID)
	h := got.Chat.History
	if len(h) != 2 || h[0].Text != "hello" {
		t.Fatalf("user message lost: %+v", h)
	}
	if !strings.HasPrefix(h[1].Text, "Failed to ") {
		t.Errorf("h[1] = %q, want fallback string", h[1].Text)
	}
}

func TestPipelineExclusivityPerBlock(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()

	release := make(chan struct{})
	completer := &fakeCompleter{reply: "ok", block: release}
	pipelines := newPipelines(env, completer)

	a := env.block(t, ws.ID, domain.BlockTypeChat)
	b := env.block(t, ws.ID, domain.BlockTypeChat)

	done := make(chan error, 2)
	go func() { done <- pipelines.Chat(ctx, a.ID, "q1") }()

	// wait until the first pipeline holds the lock
	for {
		blk, err := env.graph.GetBlock(a.ID)
		if err != nil {
			t.Fatal(err)
		}
		if blk.IsProcessing {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// same block: rejected while in flight
	if err := pipelines.Chat(ctx, a.ID, "q2"); !errors.Is(err, service.ErrPrecondition) {
		t.Errorf("concurrent run on same block: err = %v, want ErrPrecondition", err)
	}

	// different block: allowed
	go func() { done <- pipelines.Chat(ctx, b.ID, "q3") }()

	close(release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Errorf("pipeline error: %v", err)
		}
	}
}

func TestIndexInputsWithoutCorpusIsPrecondition(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	pipelines := newPipelines(env, &fakeCompleter{})

	ragBlock := env.block(t, ws.ID, domain.BlockTypeRagDB)
	src := env.block(t, ws.ID, domain.BlockTypeNote)
	content := "knowledge"
	if _, err := env.graph.UpdateBlock(ctx, src.ID, service.BlockPatch{Content: &content}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.graph.AddConnection(ctx, src.ID, ragBlock.ID); err != nil {
		t.Fatal(err)
	}

	// no bound corpus name
	err := pipelines.IndexInputs(ctx, ragBlock.ID)
	if !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}

	got, _ := env.graph.GetBlock(ragBlock.ID)
	if got.IsProcessing || len(got.Rag.IndexedDocs) != 0 {
		t.Error("failed precondition must not mutate the block")
	}
}

func TestIndexInputsSnapshotsContent(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	pipelines := newPipelines(env, &fakeCompleter{})

	if _, err := env.rag.CreateCorpus("research"); err != nil {
		t.Fatal(err)
	}
	ragBlock := env.block(t, ws.ID, domain.BlockTypeRagDB)
	if _, err := env.graph.UpdateBlock(ctx, ragBlock.ID, service.BlockPatch{Rag: &domain.RagData{DBName: "research"}}); err != nil {
		t.Fatal(err)
	}

	src := env.block(t, ws.ID, domain.BlockTypeNote)
	title, content := "Bayes Notes", "prior times likelihood"
	if _, err := env.graph.UpdateBlock(ctx, src.ID, service.BlockPatch{Title: &title, Content: &content}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.graph.AddConnection(ctx, src.ID, ragBlock.ID); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.IndexInputs(ctx, ragBlock.ID); err != nil {
		t.Fatalf("index inputs: %v", err)
	}

	corpus, err := env.rag.GetCorpus("research")
	if err != nil {
		t.Fatal(err)
	}
	if len(corpus.Docs) != 1 || corpus.Docs[0].Title != "Bayes Notes" {
		t.Errorf("corpus docs = %+v", corpus.Docs)
	}
	if len(corpus.Docs) == 1 && corpus.Docs[0].Type != domain.BlockTypeNote {
		t.Errorf("doc type = %q, want source block type", corpus.Docs[0].Type)
	}
	got, _ := env.graph.GetBlock(ragBlock.ID)
	if len(got.Rag.IndexedDocs) != 1 {
		t.Errorf("block snapshot = %d docs, want 1", len(got.Rag.IndexedDocs))
	}
}

func TestRagChatUsesCorpus(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "prior times likelihood"}
	pipelines := newPipelines(env, completer)

	if _, err := env.rag.CreateCorpus("research"); err != nil {
		t.Fatal(err)
	}
	if err := env.rag.AppendToCorpus(ctx, "research", []domain.RagDocument{
		{Title: "bayes", Content: "posterior is prior times likelihood"},
	}); err != nil {
		t.Fatal(err)
	}

	ragBlock := env.block(t, ws.ID, domain.BlockTypeRagDB)
	if _, err := env.graph.UpdateBlock(ctx, ragBlock.ID, service.BlockPatch{Rag: &domain.RagData{DBName: "research"}}); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.RagChat(ctx, ragBlock.ID, "what is the posterior?"); err != nil {
		t.Fatalf("rag chat: %v", err)
	}
	if !strings.Contains(completer.lastUser, "posterior is prior times likelihood") {
		t.Errorf("knowledge base missing from prompt: %q", completer.lastUser)
	}
	got, _ := env.graph.GetBlock(ragBlock.ID)
	if got.Chat == nil || len(got.Chat.History) != 2 {
		t.Fatalf("history = %+v, want question and answer", got.Chat)
	}
	if got.Chat.History[1].Text != "prior times likelihood" {
		t.Errorf("answer = %q", got.Chat.History[1].Text)
	}
}

func TestRagChatKeepsConversationHistory(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "an answer"}
	pipelines := newPipelines(env, completer)

	if _, err := env.rag.CreateCorpus("research"); err != nil {
		t.Fatal(err)
	}
	ragBlock := env.block(t, ws.ID, domain.BlockTypeRagDB)
	if _, err := env.graph.UpdateBlock(ctx, ragBlock.ID, service.BlockPatch{Rag: &domain.RagData{DBName: "research"}}); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.RagChat(ctx, ragBlock.ID, "first question"); err != nil {
		t.Fatalf("rag chat: %v", err)
	}
	completer.reply = "a second answer"
	if err := pipelines.RagChat(ctx, ragBlock.ID, "second question"); err != nil {
		t.Fatalf("rag chat: %v", err)
	}

	got, _ := env.graph.GetBlock(ragBlock.ID)
	h := got.Chat.History
	if len(h) != 4 {
		t.Fatalf("history = %d entries, want 4", len(h))
	}
	want := []struct {
		role domain.ChatRole
		text string
	}{
		{domain.RoleUser, "first question"},
		{domain.RoleModel, "an answer"},
		{domain.RoleUser, "second question"},
		{domain.RoleModel, "a second answer"},
	}
	for i, w := range want {
		if h[i].Role != w.role || h[i].Text != w.text {
			t.Errorf("h[%d] = %+v, want %+v", i, h[i], w)
		}
	}
	// earlier turns feed the next prompt
	if !strings.Contains(completer.lastUser, "first question") {
		t.Errorf("prior turn missing from prompt: %q", completer.lastUser)
	}
}

// flakyBlockStore fails the Nth UpdateBlock call and passes everything
// else through to the real store.
type flakyBlockStore struct {
	domain.BlockStore
	failOn int
	calls  int
}

func (f *flakyBlockStore) UpdateBlock(b *domain.Block) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("disk full")
	}
	return f.BlockStore.UpdateBlock(b)
}

func TestChatPersistFailureClearsProcessingFlag(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "ok"}

	// call 1 flips isProcessing, call 2 persists the user message
	flaky := &flakyBlockStore{BlockStore: env.blocks, failOn: 2}
	pipelines := service.NewPipelineService(env.graph, flaky, completer, env.rag, env.emitter, zap.NewNop())

	chat := env.block(t, ws.ID, domain.BlockTypeChat)
	if err := pipelines.Chat(ctx, chat.ID, "hello"); err == nil {
		t.Fatal("expected the persistence error to surface")
	}
	if completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", completer.calls)
	}

	got, _ := env.graph.GetBlock(chat.ID)
	if got.IsProcessing {
		t.Error("isProcessing must be cleared when the pipeline backs out")
	}

	// the lock must be released: a retry runs to completion
	if err := pipelines.Chat(ctx, chat.ID, "hello again"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	got, _ = env.graph.GetBlock(chat.ID)
	h := got.Chat.History
	if len(h) == 0 || h[len(h)-1].Text != "ok" {
		t.Errorf("history = %+v, want a model reply", h)
	}
}

func TestTranscribeRequiresAudioPayload(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "transcript"}
	pipelines := newPipelines(env, completer)

	audio := env.block(t, ws.ID, domain.BlockTypeAudio)
	if err := pipelines.TranscribeAudio(ctx, audio.ID, ""); !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}

	payload := "data:audio/webm;base64," + base64.StdEncoding.EncodeToString([]byte("fake-audio-bytes"))
	if err := pipelines.TranscribeAudio(ctx, audio.ID, payload); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	got, _ := env.graph.GetBlock(audio.ID)
	if got.Content != "transcript" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestIngestPDFTitlesBlockAfterFile(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "a structured summary"}
	pipelines := newPipelines(env, completer)

	pdfData, err := os.ReadFile(filepath.Join("testdata", "notes.pdf"))
	if err != nil {
		t.Fatal(err)
	}

	block := env.block(t, ws.ID, domain.BlockTypePDF)
	if err := pipelines.IngestPDF(ctx, block.ID, "notes.pdf", pdfData); err != nil {
		t.Fatalf("ingest pdf: %v", err)
	}

	if !strings.Contains(completer.lastUser, "Quarterly retrieval study notes") {
		t.Errorf("extracted text missing from prompt: %q", completer.lastUser)
	}
	got, _ := env.graph.GetBlock(block.ID)
	if got.Title != "notes.pdf" {
		t.Errorf("title = %q, want the uploaded file name", got.Title)
	}
	if got.Content != "a structured summary" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestIngestPDFWithoutDataIsPrecondition(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{}
	pipelines := newPipelines(env, completer)

	block := env.block(t, ws.ID, domain.BlockTypePDF)
	if err := pipelines.IngestPDF(ctx, block.ID, "empty.pdf", nil); !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if completer.calls != 0 {
		t.Error("no completion call on failed precondition")
	}
}

func TestIngestURLRequiresSource(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	pipelines := newPipelines(env, &fakeCompleter{reply: "summary"})

	link := env.block(t, ws.ID, domain.BlockTypeLink)
	if err := pipelines.IngestURL(ctx, link.ID); !errors.Is(err, service.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
}

func TestYouTubeIngestGroundsOnURL(t *testing.T) {
	env := newTestEnv(t)
	ws := env.workspace(t)
	ctx := context.Background()
	completer := &fakeCompleter{reply: "video summary"}
	pipelines := newPipelines(env, completer)

	yt := env.block(t, ws.ID, domain.BlockTypeYouTube)
	link := &domain.LinkData{SourceURL: "https://youtube.com/watch?v=abc"}
	if _, err := env.graph.UpdateBlock(ctx, yt.ID, service.BlockPatch{Link: link}); err != nil {
		t.Fatal(err)
	}

	if err := pipelines.IngestURL(ctx, yt.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(completer.lastUser, "youtube.com/watch?v=abc") {
		t.Errorf("url not passed to provider: %q", completer.lastUser)
	}
	got, _ := env.graph.GetBlock(yt.ID)
	if got.Content != "video summary" {
		t.Errorf("content = %q", got.Content)
	}
}
