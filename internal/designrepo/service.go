// Package designrepo keeps a per-design revision log: every saved version
// of a card document becomes a commit in that design's own git
// repository, which is what backs the revision history and
// point-in-time restore endpoints.
package designrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"cardsmith/api/internal/card"
)

// RevisionInfo describes one saved version of a design.
type RevisionInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureDesignRepo initializes the revision log for a design with its
// first version. Existing repos are left untouched.
func (s *Service) EnsureDesignRepo(designID string, doc *card.Document, author string) error {
	lock := s.designLock(designID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(designID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := writeDesignFile(path, doc); err != nil {
		return err
	}
	if _, err := worktree.Add("design.json"); err != nil {
		return fmt.Errorf("git add initial design: %w", err)
	}
	hash, err := worktree.Commit("Save initial design", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial design: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// CommitDocument records a new version. Saving an unchanged document is a
// no-op that returns the current head revision, the log stays linear and
// free of empty commits.
func (s *Service) CommitDocument(designID string, doc *card.Document, author, message string) (RevisionInfo, error) {
	lock := s.designLock(designID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(designID))
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}

	head, headInfo, err := headDocument(repo)
	if err == nil && card.Equal(head, doc) {
		return headInfo, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := writeDesignFile(worktree.Filesystem.Root(), doc); err != nil {
		return RevisionInfo{}, err
	}
	if _, err := worktree.Add("design.json"); err != nil {
		return RevisionInfo{}, fmt.Errorf("git add design: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("commit design: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return RevisionInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevisionInfo(commitObj), nil
}

// HeadDocument returns the latest saved version.
func (s *Service) HeadDocument(designID string) (*card.Document, RevisionInfo, error) {
	lock := s.designLock(designID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(designID))
	if err != nil {
		return nil, RevisionInfo{}, fmt.Errorf("open repo: %w", err)
	}
	return headDocument(repo)
}

// DocumentByHash returns the design document as of one revision.
func (s *Service) DocumentByHash(designID, hash string) (*card.Document, error) {
	lock := s.designLock(designID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(designID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readDocumentFromCommit(commitObj)
}

// History lists revisions newest first, up to limit when positive.
func (s *Service) History(designID string, limit int) ([]RevisionInfo, error) {
	lock := s.designLock(designID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(designID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]RevisionInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevisionInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) repoPath(designID string) string {
	return filepath.Join(s.baseDir, designID)
}

func (s *Service) designLock(designID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[designID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[designID] = lock
	return lock
}

func headDocument(repo *git.Repository) (*card.Document, RevisionInfo, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, RevisionInfo{}, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, RevisionInfo{}, fmt.Errorf("load commit object: %w", err)
	}
	doc, err := readDocumentFromCommit(commitObj)
	if err != nil {
		return nil, RevisionInfo{}, err
	}
	return doc, toRevisionInfo(commitObj), nil
}

func writeDesignFile(repoRoot string, doc *card.Document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal design: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "design.json"), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write design.json: %w", err)
	}
	return nil
}

func readDocumentFromCommit(commitObj *object.Commit) (*card.Document, error) {
	file, err := commitObj.File("design.json")
	if err != nil {
		return nil, fmt.Errorf("load design.json from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open design reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read design bytes: %w", err)
	}

	var doc card.Document
	if err := json.Unmarshal(bytes.TrimSpace(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode design: %w", err)
	}
	doc.Normalize()
	return &doc, nil
}

func toRevisionInfo(commitObj *object.Commit) RevisionInfo {
	return RevisionInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "cardsmith"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.cardsmith.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
