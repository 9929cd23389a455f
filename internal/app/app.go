package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"libstor/internal/archive"
	"libstor/internal/config"
	"libstor/internal/database"
	"libstor/internal/encryption"
	"libstor/internal/fs"
	"libstor/internal/libstor"
	"libstor/internal/structure"
	"libstor/internal/tracing"
)

// Version is reported to the tracing backend.
var Version = "dev"

// Options selects the library a LibApp works on.
type Options struct {
	// Operation names the CLI command in the history and the log.
	Operation string
	// Root is the library directory. It may be empty when DBPath is set.
	Root string
	// DBPath overrides the store location derived from Root.
	DBPath string
	// Scratch uses a throwaway in-memory store, e.g. to hold an imported
	// snapshot while a diff is built.
	Scratch bool
	// Verbose logs per-file events to stderr.
	Verbose bool
	// Stderr receives log lines. Defaults to os.Stderr.
	Stderr io.Writer
}

// LibApp is the application layer between the CLI and LibraryService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and records mutating commands in the
// library's history. The caller must call Close.
type LibApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	fsmgr     *fs.OSFilesystemManager
	encryptor libstor.Encryptor
	service   *libstor.LibraryService
	root      *libstor.Path
	scratch   bool
	op        *Operation
	logFile   *os.File
	shutdown  tracing.ShutdownFunc
}

// NewLibApp creates a fully wired LibApp from the given config.
func NewLibApp(ctx context.Context, cfg *config.Config, opts Options) (*LibApp, error) {
	fsmgr := fs.NewOSFilesystemManager(cfg.Scan.Ignore)

	var root *libstor.Path
	if opts.Root != "" {
		p, err := fsmgr.Resolve(opts.Root)
		if err != nil {
			return nil, &libstor.PathError{Path: opts.Root, Err: err}
		}
		if !p.IsDir() {
			return nil, &libstor.PathError{Path: opts.Root, Err: errors.New("not a directory")}
		}
		root = p
	}

	dbCfg := cfg.Database
	if opts.Scratch && opts.DBPath == "" {
		dbCfg = config.DatabaseConfig{Type: "memory"}
	}
	if dbCfg.Type != "memory" && root == nil && opts.DBPath == "" {
		return nil, fmt.Errorf("a library path or a database path is required")
	}
	rootName := ""
	if root != nil {
		rootName = root.String()
	}
	db, err := database.NewDatabaseFromConfig(dbCfg, cfg.Scan.BatchSize, rootName, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	shutdown, err := tracing.InitTracer(ctx, cfg.Tracing, Version)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, stderr, level)
	if err != nil {
		db.Close()
		shutdown(ctx)
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := libstor.NewLibraryService(db, fsmgr, &slogAdapter{l: logger}, libstor.RealClock{}, libstor.UUIDGenerator{})

	return &LibApp{
		cfg:       cfg,
		db:        db,
		fsmgr:     fsmgr,
		encryptor: enc,
		service:   svc,
		root:      root,
		scratch:   opts.Scratch && opts.DBPath == "",
		op:        NewOperation(opts.Operation, rootName),
		logFile:   logFile,
		shutdown:  shutdown,
	}, nil
}

// Root returns the resolved library root, or nil.
func (a *LibApp) Root() *libstor.Path {
	return a.root
}

// StorePath returns where the library's store lives.
func (a *LibApp) StorePath() string {
	return a.db.Path()
}

func (a *LibApp) requireRoot() error {
	if a.root == nil {
		return fmt.Errorf("no library path given")
	}
	return nil
}

// persistOperation records the running command in the history. Only
// commands that mutate the store call it, and scratch stores are not
// recorded at all.
func (a *LibApp) persistOperation(ctx context.Context) error {
	if a.scratch || a.op.Persisted() {
		return nil
	}
	rec, err := a.service.StartOperation(ctx, a.op.Name, a.op.Parameters)
	if err != nil {
		return err
	}
	a.op.record = rec
	return nil
}

// Scan reconciles the library with the store in the given role.
func (a *LibApp) Scan(ctx context.Context, role libstor.Role, sinks Sinks) (*libstor.ScanResult, error) {
	if err := a.requireRoot(); err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	res, err := a.service.Scan(ctx, a.root, libstor.ScanOptions{
		Role:       role,
		Progress:   sinks.Progress,
		Duplicates: sinks.Duplicates,
		Errors:     sinks.Errors,
	})
	a.op.recordScan(res)
	return res, a.op.fail(err)
}

// Export writes a snapshot of the store into structDir in the configured format.
func (a *LibApp) Export(ctx context.Context, structDir string, progress libstor.ProgressSink) (int, error) {
	rootName := ""
	if a.root != nil {
		rootName = a.root.String()
	}
	w, err := structure.NewWriter(a.cfg.Structure.Format, structDir, rootName)
	if err != nil {
		return 0, err
	}
	n, err := a.service.ExportSnapshot(ctx, w, a.cfg.Structure.PageSize, progress)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing snapshot: %w", cerr)
	}
	return n, err
}

// Import loads the CSV snapshot in structDir into the store.
func (a *LibApp) Import(ctx context.Context, structDir string, progress libstor.ProgressSink) (int, error) {
	r, err := structure.NewReader(structDir)
	if err != nil {
		return 0, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	n, err := a.service.ImportSnapshot(ctx, r, progress)
	return n, a.op.fail(err)
}

// MakeDiff imports the snapshot of the original library from structDir,
// scans this library as its copy and packages the differences at diffPath.
func (a *LibApp) MakeDiff(ctx context.Context, structDir, diffPath string, sinks Sinks) (*libstor.ScanResult, error) {
	if err := a.requireRoot(); err != nil {
		return nil, err
	}
	if _, err := a.Import(ctx, structDir, nil); err != nil {
		return nil, fmt.Errorf("importing snapshot: %w", err)
	}
	res, err := a.Scan(ctx, libstor.RoleCopy, sinks)
	if err != nil {
		return nil, err
	}

	w, err := archive.Create(diffPath, archive.Options{
		Compression: a.cfg.Diff.Compression,
		Encryptor:   a.encryptor,
	})
	if err != nil {
		return nil, a.op.fail(err)
	}
	if err := a.service.PackageDiff(ctx, a.root, res.Entries, w, sinks.Progress); err != nil {
		w.Abort()
		return nil, a.op.fail(err)
	}
	if err := w.Close(); err != nil {
		return nil, a.op.fail(fmt.Errorf("writing diff package: %w", err))
	}
	return res, nil
}

// PassphraseFunc asks the user for the passphrase of the private key.
type PassphraseFunc func() (string, error)

// ApplyDiff brings this library in line with the diff package at diffPath.
// The store is refreshed with a scan first and, when file backed, copied to
// <store>.bak so a bad apply can be undone by hand.
func (a *LibApp) ApplyDiff(ctx context.Context, diffPath string, passphrase PassphraseFunc, sinks Sinks) (*libstor.ApplyResult, error) {
	if err := a.requireRoot(); err != nil {
		return nil, err
	}
	pkg, err := archive.Open(diffPath, a.unlocker(passphrase))
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	if _, err := a.service.Scan(ctx, a.root, libstor.ScanOptions{Role: libstor.RoleOriginal, Errors: sinks.Errors}); err != nil {
		return nil, a.op.fail(fmt.Errorf("refreshing store: %w", err))
	}
	if err := a.backupStore(); err != nil {
		return nil, a.op.fail(err)
	}

	res, err := a.service.ApplyDiff(ctx, a.root, pkg, libstor.ApplyOptions{
		Progress:  sinks.Progress,
		Errors:    sinks.Errors,
		Conflicts: sinks.Conflicts,
	})
	if res != nil {
		a.op.errors = len(res.Errors) + len(res.Conflicts)
	}
	return res, a.op.fail(err)
}

func (a *LibApp) unlocker(passphrase PassphraseFunc) archive.Unlocker {
	return func() (libstor.DecryptionContext, error) {
		if a.encryptor == nil {
			return nil, fmt.Errorf("%w and no encryption is configured", archive.ErrEncrypted)
		}
		if passphrase == nil {
			return nil, archive.ErrEncrypted
		}
		pw, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		return a.encryptor.Unlock(pw)
	}
}

func (a *LibApp) backupStore() error {
	path := a.db.Path()
	if path == "" || path == ":memory:" {
		return nil
	}
	dest := path + ".bak"
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old store backup: %w", err)
	}
	if err := a.db.BackupTo(dest); err != nil {
		return fmt.Errorf("backing up store: %w", err)
	}
	return nil
}

// Status returns the store counts and the last recorded operation.
func (a *LibApp) Status(ctx context.Context) (*libstor.LibraryStatus, error) {
	return a.service.Status(ctx)
}

// GetHistory returns the most recent operations.
func (a *LibApp) GetHistory(ctx context.Context, limit int) ([]*libstor.Operation, error) {
	return a.service.GetHistory(ctx, limit)
}

func (a *LibApp) CreateTag(ctx context.Context, name, parent string) (*libstor.Tag, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	tag, err := a.service.CreateTag(ctx, name, parent)
	return tag, a.op.fail(err)
}

func (a *LibApp) ListTags(ctx context.Context) ([]*libstor.Tag, error) {
	return a.service.ListTags(ctx)
}

func (a *LibApp) DeleteTag(ctx context.Context, name string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.op.fail(a.service.DeleteTag(ctx, name))
}

// AssignTag tags a file given by a path relative to the library root.
func (a *LibApp) AssignTag(ctx context.Context, name, rel string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.op.fail(a.service.AssignTag(ctx, name, rel))
}

func (a *LibApp) UnassignTag(ctx context.Context, name, rel string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.op.fail(a.service.UnassignTag(ctx, name, rel))
}

func (a *LibApp) FilesForTag(ctx context.Context, name string) ([]*libstor.FileRecord, error) {
	return a.service.FilesForTag(ctx, name)
}

func (a *LibApp) TagsForFile(ctx context.Context, rel string) ([]*libstor.Tag, error) {
	return a.service.TagsForFile(ctx, rel)
}

// Close records the outcome of the operation and releases all resources.
func (a *LibApp) Close() error {
	ctx := context.Background()
	var firstErr error

	if a.op.Persisted() {
		a.op.record.Scanned = a.op.scanned
		a.op.record.Duplicates = a.op.duplicates
		a.op.record.Errors = a.op.errors
		if err := a.service.FinishOperation(ctx, a.op.record, a.op.err); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if err := a.shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shutting down tracing: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupKeys generates the age key pair named in cfg and returns the public key.
func SetupKeys(cfg *config.Config, passphrase string) (string, error) {
	enc := encryption.NewAgeEncryptor(cfg.Encryption)
	if err := enc.Setup(passphrase); err != nil {
		return "", err
	}
	return enc.Recipient()
}

// Sinks collects the optional event receivers of an operation.
type Sinks struct {
	Progress   libstor.ProgressSink
	Duplicates libstor.DuplicateSink
	Errors     libstor.FileErrorSink
	Conflicts  libstor.ConflictSink
}
