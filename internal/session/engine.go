package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knoguchi/docmemory/internal/apperr"
	"github.com/knoguchi/docmemory/internal/cluster"
	"github.com/knoguchi/docmemory/internal/embedder"
	"github.com/knoguchi/docmemory/internal/followup"
	"github.com/knoguchi/docmemory/internal/llm"
	"github.com/knoguchi/docmemory/internal/navtree"
	"github.com/knoguchi/docmemory/internal/snapshot"
	"github.com/knoguchi/docmemory/internal/vectorstore"
)

// Retriever is the subset of vectorstore.Adapter the engine needs: spec
// §4.3's search(expanded_query) -> []Chunk contract.
type Retriever interface {
	Search(ctx context.Context, query string) ([]vectorstore.Chunk, error)
}

// Config holds the engine's tunables, named directly after spec §6's
// Configuration list.
type Config struct {
	DirectMatchThreshold  float32
	HDBSCANMinClusterSize int
	MaxClusters           int
	MaxFollowupQuestions  int
	LLMModel              string
	LLMTemperature        float32
	SessionTTL            time.Duration
}

// entry pairs a session with its own lock, per spec §5: at most one
// state-changing operation may be in flight per session.
type entry struct {
	mu      sync.Mutex
	session *Session
}

// Engine is the session registry: a concurrent map keyed by session id, one
// lock per session, modeled on the teacher's memory.Store (same
// RWMutex-guarded map, same TTL cleanup goroutine shape, reused here for
// garbage-collecting abandoned sessions instead of conversation turns).
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	retriever Retriever
	llmClient llm.LLM
	dense     embedder.Embedder
	cfg       Config
	logger    *slog.Logger

	stopCh chan struct{}
}

// NewEngine constructs a session engine and starts its TTL cleanup goroutine.
func NewEngine(retriever Retriever, llmClient llm.LLM, dense embedder.Embedder, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		sessions:  make(map[string]*entry),
		retriever: retriever,
		llmClient: llmClient,
		dense:     dense,
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	go e.cleanupLoop()
	return e
}

// Close stops the TTL cleanup goroutine.
func (e *Engine) Close() {
	close(e.stopCh)
}

func (e *Engine) cleanupLoop() {
	interval := e.cfg.SessionTTL / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.cleanupExpired()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) cleanupExpired() {
	if e.cfg.SessionTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-e.cfg.SessionTTL)

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ent := range e.sessions {
		ent.mu.Lock()
		expired := ent.session.CreatedAt.Before(cutoff)
		ent.mu.Unlock()
		if expired {
			delete(e.sessions, id)
		}
	}
}

func (e *Engine) genOpts() llm.GenerateOptions {
	return llm.GenerateOptions{Model: e.cfg.LLMModel, Temperature: e.cfg.LLMTemperature}
}

func (e *Engine) lookup(id string) (*entry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.sessions[id]
	return ent, ok
}

// Start creates a new session from a user query: spec §4.7's start(query) event.
func (e *Engine) Start(ctx context.Context, query string) (View, error) {
	expanded := llm.ExpandQuery(ctx, e.llmClient, e.genOpts(), query)

	hits, err := e.retriever.Search(ctx, expanded)
	if err != nil {
		return View{}, apperr.Wrap(apperr.OracleFatal, "vector store search failed", err)
	}
	if len(hits) == 0 {
		return View{}, apperr.New(apperr.NoResults, fmt.Sprintf("no hits for query %q", query))
	}
	sortByScoreDesc(hits)

	id := uuid.NewString()[:12]
	s := newSession(id, query)
	s.ExpandedQuery = expanded
	s.NavTree.AddRoot("all documents")
	s.CurrentNavNode = navtree.RootID

	if hits[0].Score >= e.cfg.DirectMatchThreshold {
		foundFile := hits[0].File
		s.Points = filterByFile(hits, foundFile)
		s.Status = StatusFound
		s.FoundFile = foundFile
	} else {
		s.Points = hits
		e.doCluster(ctx, s)
	}

	ent := &entry{session: s}
	e.mu.Lock()
	e.sessions[id] = ent
	e.mu.Unlock()

	e.logTransition(s, "start")
	return buildView(s, e.cfg.MaxFollowupQuestions), nil
}

// Get returns the serialized view of a session.
func (e *Engine) Get(id string) (View, error) {
	ent, ok := e.lookup(id)
	if !ok {
		return View{}, apperr.New(apperr.NotFound, "unknown session "+id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return buildView(ent.session, e.cfg.MaxFollowupQuestions), nil
}

// Delete removes a session. Always succeeds, per spec §6 (DELETE returns 200 always).
func (e *Engine) Delete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// Pick narrows the candidate pool to one cluster: spec §4.7's pick(cid) event.
func (e *Engine) Pick(ctx context.Context, id string, clusterID int) (View, error) {
	ent, ok := e.lookup(id)
	if !ok {
		return View{}, apperr.New(apperr.NotFound, "unknown session "+id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s := ent.session

	if s.Status != StatusClusters {
		return View{}, apperr.New(apperr.InputInvalid, "pick requires status=clusters")
	}
	if _, ok := s.ClusterLabels[clusterID]; !ok {
		return View{}, apperr.New(apperr.InputInvalid, fmt.Sprintf("unknown cluster id %d", clusterID))
	}

	nodeID := navtree.ChildNodeID(clusterID, s.Round)
	s.NavTree.MarkOnPath(nodeID)
	s.CurrentNavNode = nodeID
	s.Points = narrowByLabel(s.Points, s.Labels, clusterID)
	s.Labels = nil
	s.ClusterLabels, s.ClusterFiles, s.ClusterSizes = nil, nil, nil

	e.evaluateTermination(ctx, s, false)

	e.logTransition(s, "pick")
	return buildView(s, e.cfg.MaxFollowupQuestions), nil
}

// Help enters (or re-enters) follow-up mode: spec §4.7's help() event.
func (e *Engine) Help(ctx context.Context, id string) (View, error) {
	ent, ok := e.lookup(id)
	if !ok {
		return View{}, apperr.New(apperr.NotFound, "unknown session "+id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s := ent.session

	if s.Status != StatusClusters && s.Status != StatusFollowup {
		return View{}, apperr.New(apperr.InputInvalid, "help requires status=clusters or status=followup")
	}
	if s.FollowupCount >= e.cfg.MaxFollowupQuestions {
		return View{}, apperr.New(apperr.InputInvalid, "follow-up question budget exhausted")
	}

	e.synthesizeFollowup(ctx, s)

	e.logTransition(s, "help")
	return buildView(s, e.cfg.MaxFollowupQuestions), nil
}

// Answer records an answer to the pending follow-up question and re-scores
// the pool: spec §4.7's answer(a) event.
func (e *Engine) Answer(ctx context.Context, id string, answer string) (View, error) {
	ent, ok := e.lookup(id)
	if !ok {
		return View{}, apperr.New(apperr.NotFound, "unknown session "+id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s := ent.session

	if s.Status != StatusFollowup {
		return View{}, apperr.New(apperr.InputInvalid, "answer requires status=followup")
	}
	if s.PendingQuestion == "" {
		return View{}, apperr.New(apperr.InputInvalid, "no pending question")
	}

	// Compute everything before mutating session state, so a failed oracle
	// call leaves the session unchanged (spec §7's atomicity rule).
	newConversation := append(append([]Exchange{}, s.Conversation...), Exchange{Question: s.PendingQuestion, Answer: answer})
	filtered, err := followup.Filter(ctx, e.dense, s.Points, newConversation)
	if err != nil {
		return View{}, apperr.Wrap(apperr.OracleTransient, "follow-up filtering failed", err)
	}

	s.Conversation = newConversation
	s.PendingQuestion = ""
	s.Points = filtered
	s.FollowupCount++

	e.evaluateTermination(ctx, s, true)

	e.logTransition(s, "answer")
	return buildView(s, e.cfg.MaxFollowupQuestions), nil
}

// Backtrack restores a prior snapshot and re-enters exploration from that
// point: spec §4.7's backtrack(node_id) event.
func (e *Engine) Backtrack(ctx context.Context, id string, nodeID string) (View, error) {
	ent, ok := e.lookup(id)
	if !ok {
		return View{}, apperr.New(apperr.NotFound, "unknown session "+id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s := ent.session

	node, ok := s.NavTree.Find(nodeID)
	if !ok {
		return View{}, apperr.New(apperr.InputInvalid, "unknown nav node "+nodeID)
	}

	if nodeID == navtree.RootID {
		snap, ok := s.Snapshots.Get(1)
		if !ok {
			return View{}, apperr.New(apperr.InputInvalid, "no snapshot to restore root")
		}
		e.restoreSnapshot(s, snap)
		s.NavTree.PruneBeyond(0, navtree.RootID)
		s.Snapshots.DiscardAfter(0)
		s.Round = 0
		s.CurrentNavNode = navtree.RootID
		e.doCluster(ctx, s)

		e.logTransition(s, "backtrack")
		return buildView(s, e.cfg.MaxFollowupQuestions), nil
	}

	targetRound := node.Round
	snap, ok := s.Snapshots.Get(targetRound)
	if !ok {
		return View{}, apperr.New(apperr.InputInvalid, fmt.Sprintf("no snapshot for round %d", targetRound))
	}

	e.restoreSnapshot(s, snap)
	s.NavTree.PruneBeyond(targetRound, nodeID)
	s.Snapshots.DiscardAfter(targetRound)
	s.Round = targetRound
	s.CurrentNavNode = nodeID

	hasClusters := e.relabelAndBuildClusters(ctx, s)
	if !hasClusters {
		e.synthesizeFollowup(ctx, s)
	} else {
		s.Status = StatusClusters
		if node.ClusterID != nil {
			s.Points = narrowByLabel(s.Points, s.Labels, *node.ClusterID)
			s.Labels = nil
			s.ClusterLabels, s.ClusterFiles, s.ClusterSizes = nil, nil, nil
			e.evaluateTermination(ctx, s, false)
		}
	}

	e.logTransition(s, "backtrack")
	return buildView(s, e.cfg.MaxFollowupQuestions), nil
}

func (e *Engine) restoreSnapshot(s *Session, snap snapshot.Snapshot) {
	s.Points = snap.Points
	s.Conversation = snap.Conversation
	s.FollowupCount = snap.FollowupCount
	s.FoundFile = ""
	s.PendingQuestion = ""
	s.Labels = nil
	s.ClusterLabels, s.ClusterFiles, s.ClusterSizes = nil, nil, nil
}

// --- internal orchestration, grounded on the teacher's step-numbered
// service.Query orchestration and its oracle-failure-falls-back-to-X idiom ---

// doCluster implements the re-cluster step of spec §4.7's termination
// evaluator (step 4): increment round, snapshot, cluster, label.
func (e *Engine) doCluster(ctx context.Context, s *Session) {
	s.Round++
	s.Snapshots.Take(s.Round, s.Points, s.Conversation, s.FollowupCount)

	hasClusters := e.relabelAndBuildClusters(ctx, s)
	if hasClusters {
		s.Status = StatusClusters
		e.addClusterChildren(s)
	} else {
		e.synthesizeFollowup(ctx, s)
	}
}

// relabelAndBuildClusters runs the clusterer over the current pool and, if
// any non-noise clusters exist, labels each with the LLM oracle. Returns
// whether any non-noise cluster was found.
func (e *Engine) relabelAndBuildClusters(ctx context.Context, s *Session) bool {
	vectors := make([][]float32, len(s.Points))
	for i, c := range s.Points {
		vectors[i] = c.DenseVector
	}

	params := cluster.Params{
		MinClusterSize: cluster.MinClusterSizeFor(len(s.Points), e.cfg.HDBSCANMinClusterSize),
		MinSamples:     2,
		MaxClusters:    e.cfg.MaxClusters,
	}
	labels := cluster.Labels(vectors, params)
	s.Labels = labels

	distinct := distinctNonNoiseSorted(labels)
	if len(distinct) == 0 {
		s.ClusterLabels, s.ClusterFiles, s.ClusterSizes = nil, nil, nil
		return false
	}

	clusterFileSets := map[int]map[string]bool{}
	clusterSizes := map[int]int{}
	for i, l := range labels {
		if l < 0 {
			continue
		}
		clusterSizes[l]++
		if clusterFileSets[l] == nil {
			clusterFileSets[l] = map[string]bool{}
		}
		clusterFileSets[l][s.Points[i].File] = true
	}

	clusterLabels := map[int]string{}
	for _, cid := range distinct {
		text := concatClusterText(s.Points, labels, cid)
		clusterLabels[cid] = llm.LabelCluster(ctx, e.llmClient, e.genOpts(), cid, text)
	}

	s.ClusterLabels = clusterLabels
	s.ClusterSizes = clusterSizes
	s.ClusterFiles = map[int][]string{}
	for cid, files := range clusterFileSets {
		list := make([]string, 0, len(files))
		for f := range files {
			list = append(list, f)
		}
		sort.Strings(list)
		s.ClusterFiles[cid] = list
	}

	return true
}

func (e *Engine) addClusterChildren(s *Session) {
	ids := make([]int, 0, len(s.ClusterLabels))
	for id := range s.ClusterLabels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	children := make([]navtree.ChildSpec, len(ids))
	for i, id := range ids {
		children[i] = navtree.ChildSpec{ClusterID: id, Label: s.ClusterLabels[id]}
	}
	s.NavTree.AddChildren(s.CurrentNavNode, s.Round, children)
}

// synthesizeFollowup implements the "synthesize another question" branch of
// spec §4.7's termination evaluator, and the help() event.
func (e *Engine) synthesizeFollowup(ctx context.Context, s *Session) {
	summaries := buildFileSummaries(s.Points)
	history := make([]llm.ConversationTurn, len(s.Conversation))
	for i, ex := range s.Conversation {
		history[i] = llm.ConversationTurn{Question: ex.Question, Answer: ex.Answer}
	}

	q := llm.SynthesizeFollowup(ctx, e.llmClient, e.genOpts(), summaries, history, s.FollowupCount+1)
	s.PendingQuestion = q
	s.Status = StatusFollowup
	s.Labels = nil
	s.ClusterLabels, s.ClusterFiles, s.ClusterSizes = nil, nil, nil
}

// evaluateTermination implements spec §4.7's termination evaluator, run
// after every narrowing operation (pick or answer).
func (e *Engine) evaluateTermination(ctx context.Context, s *Session, fromFollowup bool) {
	f := uniqueFiles(s.Points)
	n := len(s.Points)

	if f == 1 {
		s.Status = StatusFound
		s.FoundFile = s.Points[0].File
		return
	}
	if n < 3 {
		s.Status = StatusExhausted
		return
	}
	if fromFollowup {
		if s.FollowupCount >= e.cfg.MaxFollowupQuestions || f <= 3 {
			e.doCluster(ctx, s)
		} else {
			e.synthesizeFollowup(ctx, s)
		}
		return
	}
	e.doCluster(ctx, s)
}

func (e *Engine) logTransition(s *Session, event string) {
	e.logger.Info("session transition",
		"session_id", s.ID,
		"event", event,
		"round", s.Round,
		"status", string(s.Status),
	)
}

// --- pure helpers ---

func sortByScoreDesc(chunks []vectorstore.Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
}

func filterByFile(chunks []vectorstore.Chunk, file string) []vectorstore.Chunk {
	out := make([]vectorstore.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.File == file {
			out = append(out, c)
		}
	}
	return out
}

func narrowByLabel(points []vectorstore.Chunk, labels []int, clusterID int) []vectorstore.Chunk {
	out := make([]vectorstore.Chunk, 0, len(points))
	for i, c := range points {
		if i < len(labels) && labels[i] == clusterID {
			out = append(out, c)
		}
	}
	return out
}

func distinctNonNoiseSorted(labels []int) []int {
	seen := map[int]bool{}
	for _, l := range labels {
		if l >= 0 {
			seen[l] = true
		}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func concatClusterText(points []vectorstore.Chunk, labels []int, clusterID int) string {
	text := ""
	for i, c := range points {
		if i < len(labels) && labels[i] == clusterID {
			if text != "" {
				text += " "
			}
			text += c.ChunkText
		}
	}
	return text
}

func buildFileSummaries(points []vectorstore.Chunk) []llm.FileSummary {
	order := make([]string, 0)
	byFile := map[string]string{}
	for _, c := range points {
		if _, ok := byFile[c.File]; !ok {
			order = append(order, c.File)
		}
		if byFile[c.File] != "" {
			byFile[c.File] += " "
		}
		byFile[c.File] += c.ChunkText
	}

	summaries := make([]llm.FileSummary, 0, len(order))
	for _, f := range order {
		summaries = append(summaries, llm.FileSummary{
			File: f,
			Text: llm.TruncateBytes(byFile[f], llm.SummaryTruncateBytes),
		})
	}
	return summaries
}
