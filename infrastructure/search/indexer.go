// Package search is the vector index behind memory ingestion, built on an
// embedded chromem-go database with one collection per user.
package search

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dharun-sukumar/Audio-Rag/application/ports"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	metaMemoryID = "memory_id"
	metaUserID   = "user_id"
	metaChunk    = "chunk"
	metaStart    = "start"
	metaEnd      = "end"
)

// Index implements ports.VectorIndexer and ports.MemorySearcher.
type Index struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger *zap.Logger

	mu          sync.Mutex
	collections map[uuid.UUID]*chromem.Collection
}

// NewIndex opens an index persisted under path. An empty path keeps the
// index in memory.
func NewIndex(path string, embed chromem.EmbeddingFunc, logger *zap.Logger) (*Index, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else if db, err = chromem.NewPersistentDB(path, true); err != nil {
		return nil, fmt.Errorf("open vector index %s: %w", path, err)
	}
	if embed == nil {
		embed = HashEmbedding
	}
	return &Index{
		db:          db,
		embed:       embed,
		logger:      logger,
		collections: make(map[uuid.UUID]*chromem.Collection),
	}, nil
}

func collectionName(userID uuid.UUID) string {
	return "user_" + userID.String()
}

func documentID(memoryID uuid.UUID, i int) string {
	return memoryID.String() + ":" + strconv.Itoa(i)
}

func (x *Index) collection(userID uuid.UUID) (*chromem.Collection, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if col, ok := x.collections[userID]; ok {
		return col, nil
	}
	col, err := x.db.GetOrCreateCollection(collectionName(userID), map[string]string{metaUserID: userID.String()}, x.embed)
	if err != nil {
		return nil, fmt.Errorf("open collection for user %s: %w", userID, err)
	}
	x.collections[userID] = col
	return col, nil
}

// IndexMemory replaces the documents of memoryID with chunks.
func (x *Index) IndexMemory(ctx context.Context, userID, memoryID uuid.UUID, chunks []ports.Chunk) error {
	col, err := x.collection(userID)
	if err != nil {
		return err
	}
	if err := deleteMemoryDocs(ctx, col, memoryID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			metaMemoryID: memoryID.String(),
			metaUserID:   userID.String(),
			metaChunk:    strconv.Itoa(i),
		}
		if c.Start != nil {
			meta[metaStart] = strconv.FormatFloat(*c.Start, 'f', 3, 64)
		}
		if c.End != nil {
			meta[metaEnd] = strconv.FormatFloat(*c.End, 'f', 3, 64)
		}
		docs = append(docs, chromem.Document{
			ID:       documentID(memoryID, i),
			Content:  c.Text,
			Metadata: meta,
		})
	}

	if err := col.AddDocuments(ctx, docs, 4); err != nil {
		return fmt.Errorf("add documents for memory %s: %w", memoryID, err)
	}
	x.logger.Debug("memory indexed",
		zap.String("memory_id", memoryID.String()),
		zap.Int("chunks", len(docs)),
	)
	return nil
}

// DeleteMemory removes every document of memoryID from the owner's collection.
func (x *Index) DeleteMemory(ctx context.Context, userID, memoryID uuid.UUID) error {
	col, err := x.collection(userID)
	if err != nil {
		return err
	}
	return deleteMemoryDocs(ctx, col, memoryID)
}

func deleteMemoryDocs(ctx context.Context, col *chromem.Collection, memoryID uuid.UUID) error {
	if col.Count() == 0 {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{metaMemoryID: memoryID.String()}, nil); err != nil {
		return fmt.Errorf("delete documents for memory %s: %w", memoryID, err)
	}
	return nil
}

// ReassignOwner moves the documents of memoryIDs from one user's collection
// to another's, keeping their embeddings.
func (x *Index) ReassignOwner(ctx context.Context, from, to uuid.UUID, memoryIDs []uuid.UUID) error {
	if len(memoryIDs) == 0 || from == to {
		return nil
	}
	src, err := x.collection(from)
	if err != nil {
		return err
	}
	dst, err := x.collection(to)
	if err != nil {
		return err
	}

	moved := 0
	for _, id := range memoryIDs {
		docs := memoryDocs(ctx, src, id)
		if len(docs) == 0 {
			continue
		}
		for i := range docs {
			docs[i].Metadata[metaUserID] = to.String()
		}
		if err := deleteMemoryDocs(ctx, dst, id); err != nil {
			return err
		}
		if err := dst.AddDocuments(ctx, docs, 4); err != nil {
			return fmt.Errorf("copy documents for memory %s: %w", id, err)
		}
		if err := deleteMemoryDocs(ctx, src, id); err != nil {
			return err
		}
		moved += len(docs)
	}

	x.logger.Info("index documents reassigned",
		zap.String("from_user", from.String()),
		zap.String("to_user", to.String()),
		zap.Int("documents", moved),
	)
	return nil
}

// memoryDocs reads the documents of memoryID. Chunk ids are dense from zero.
func memoryDocs(ctx context.Context, col *chromem.Collection, memoryID uuid.UUID) []chromem.Document {
	var docs []chromem.Document
	for i := 0; ; i++ {
		doc, err := col.GetByID(ctx, documentID(memoryID, i))
		if err != nil {
			return docs
		}
		meta := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		doc.Metadata = meta
		docs = append(docs, doc)
	}
}

// Search returns up to limit chunks of userID's memories most similar to query.
func (x *Index) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]ports.SearchHit, error) {
	col, err := x.collection(userID)
	if err != nil {
		return nil, err
	}
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit <= 0 {
		return []ports.SearchHit{}, nil
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]ports.SearchHit, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.Metadata[metaMemoryID])
		if err != nil {
			x.logger.Warn("skipping document without memory id", zap.String("document_id", r.ID))
			continue
		}
		hits = append(hits, ports.SearchHit{
			MemoryID:   id,
			Text:       r.Content,
			Similarity: r.Similarity,
			Start:      parseSeconds(r.Metadata[metaStart]),
			End:        parseSeconds(r.Metadata[metaEnd]),
		})
	}
	return hits, nil
}

func parseSeconds(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
