// Package main provides the guardian CLI.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"guardian/internal/checkpoint"
	"guardian/internal/config"
	"guardian/internal/database"
	"guardian/internal/git"
	"guardian/internal/graph"
	"guardian/internal/rollback"
	"guardian/internal/stats"
	"guardian/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Checkpoint and session tracking for coding workspaces",
	Long:  `Guardian records workspace checkpoints backed by git commits, groups them into coding sessions, and can roll the workspace back to any of them.`,
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [name]",
	Short: "Create a manual checkpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheckpoint,
}

var quickSaveCmd = &cobra.Command{
	Use:   "quick-save",
	Short: "Create a checkpoint without naming it",
	Args:  cobra.NoArgs,
	RunE:  runQuickSave,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	RunE:  runList,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List coding sessions",
	RunE:  runSessions,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session commands",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a new coding session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionStart,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active coding session",
	RunE:  runSessionEnd,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <checkpoint-id>",
	Short: "Restore the workspace to a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

var restoreFileCmd = &cobra.Command{
	Use:   "restore-file <checkpoint-id> <path>",
	Short: "Restore a single file from a checkpoint",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestoreFile,
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Return the workspace to the most recent checkpoint",
	RunE:  runLatest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <checkpoint-id>",
	Short: "Delete a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var starCmd = &cobra.Command{
	Use:   "star <checkpoint-id>",
	Short: "Star a checkpoint so retention never evicts it",
	Args:  cobra.ExactArgs(1),
	RunE:  runStar,
}

var validateCmd = &cobra.Command{
	Use:   "validate <checkpoint-id>",
	Short: "Check whether a checkpoint can still be rolled back to",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove checkpoints that can no longer be rolled back to",
	RunE:  runCleanup,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile stored checkpoints with git history",
	RunE:  runSync,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the commit graph with lane assignments",
	RunE:  runGraph,
}

var diffCmd = &cobra.Command{
	Use:   "diff [checkpoint-id]",
	Short: "Show uncommitted changes, or what a checkpoint captured",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiff,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize checkpoint and session activity",
	RunE:  runStats,
}

var (
	workspaceFlag   string
	descriptionFlag string
	jsonFlag        bool
	strategyFlag    string
	skipBackupFlag  bool
	unstarFlag      bool
	graphModeFlag   string
	graphMaxFlag    int
	stagedFlag      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".", "Path to the workspace")

	checkpointCmd.Flags().StringVarP(&descriptionFlag, "description", "d", "", "Checkpoint description")
	listCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	sessionsCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	rollbackCmd.Flags().StringVarP(&strategyFlag, "strategy", "s", "", "Rollback strategy: hard, soft, files, content")
	rollbackCmd.Flags().BoolVar(&skipBackupFlag, "skip-backup", false, "Skip the safety checkpoint before rolling back")
	starCmd.Flags().BoolVar(&unstarFlag, "remove", false, "Remove the star instead")
	graphCmd.Flags().StringVar(&graphModeFlag, "mode", "guardian", "Graph mode: guardian or full")
	graphCmd.Flags().IntVar(&graphMaxFlag, "max", 0, "Maximum commits to fetch (0 uses the configured limit)")
	graphCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	statsCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	diffCmd.Flags().BoolVar(&stagedFlag, "staged", false, "Show staged changes instead of unstaged")

	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd)
	rootCmd.AddCommand(checkpointCmd, quickSaveCmd, listCmd, sessionsCmd, sessionCmd,
		rollbackCmd, restoreFileCmd, latestCmd, deleteCmd, starCmd,
		validateCmd, cleanupCmd, syncCmd, graphCmd, diffCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles everything a command needs, opened per invocation.
type env struct {
	cfg    *config.Config
	store  *checkpoint.Store
	git    git.Client
	repo   *git.Repo // concrete handle for diff output, nil without git
	logger *slog.Logger
}

func openEnv() (*env, error) {
	workspace, err := filepath.Abs(workspaceFlag)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	settings, err := cfg.LoadSettings()
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "error", err)
	}

	var gitClient git.Client
	var repo *git.Repo
	if settings.UseGit && git.IsRepository(workspace) {
		repo, err = git.Open(workspace)
		if err != nil {
			logger.Warn("git unavailable, running snapshot-only", "error", err)
			repo = nil
		} else {
			gitClient = repo
		}
	}

	store, err := checkpoint.NewStore(workspace, storage.New(cfg.StatePath, cfg.PoolDir), gitClient, nil, logger)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, store: store, git: gitClient, repo: repo, logger: logger}, nil
}

func (e *env) engine() *rollback.Engine {
	return rollback.NewEngine(e.store, e.git, e.cfg.WorkspaceDir, nil, nil, e.logger)
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	opts := &checkpoint.CreateOptions{Description: descriptionFlag}
	if len(args) > 0 {
		opts.Name = args[0]
	}

	cp, err := e.store.CreateCheckpoint(checkpoint.TypeManual, checkpoint.SourceUser, nil, opts)
	if err != nil {
		return err
	}

	fmt.Printf("Created checkpoint %s (%s)\n", shortID(cp.ID), cp.Name)
	if cp.VersionRef != "" {
		fmt.Printf("  commit %s\n", cp.VersionRef[:7])
	}
	return nil
}

func runQuickSave(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	cp, err := e.store.QuickSave()
	if err != nil {
		return err
	}

	fmt.Printf("Created checkpoint %s (%s)\n", shortID(cp.ID), cp.Name)
	if cp.VersionRef != "" {
		fmt.Printf("  commit %s\n", cp.VersionRef[:7])
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	checkpoints := e.store.Checkpoints()
	if jsonFlag {
		return printJSON(checkpoints)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tTYPE\tSOURCE\tFILES\tNAME")
	for i := len(checkpoints) - 1; i >= 0; i-- {
		cp := checkpoints[i]
		star := ""
		if cp.Starred {
			star = "* "
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s%s\n",
			shortID(cp.ID), formatMillis(cp.Timestamp), cp.Type, cp.Source,
			len(cp.ChangedFiles), star, cp.Name)
	}
	return w.Flush()
}

func runSessions(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	sessions := e.store.Sessions()
	if jsonFlag {
		return printJSON(sessions)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tACTIVE\tCHECKPOINTS\tFILES\tNAME")
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		active := ""
		if s.IsActive {
			active = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			shortID(s.ID), formatMillis(s.StartTime), active,
			len(s.CheckpointIDs), s.TotalFilesChanged, s.Name)
	}
	return w.Flush()
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	session, err := e.store.StartSession(name)
	if err != nil {
		return err
	}
	fmt.Printf("Started session %s (%s)\n", shortID(session.ID), session.Name)
	return nil
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.store.EndSession(); err != nil {
		return err
	}
	fmt.Println("Session ended")
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}

	result, err := e.engine().Rollback(id, rollback.Options{
		Strategy:   rollback.Strategy(strategyFlag),
		SkipBackup: skipBackupFlag,
	})
	if err != nil {
		return err
	}
	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func runRestoreFile(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}

	result, err := e.engine().RollbackFile(id, args[1])
	if err != nil {
		return err
	}
	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func runLatest(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	result, err := e.engine().ReturnToLatest()
	if err != nil {
		return err
	}
	printResult(result)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}

	removed, err := e.store.DeleteCheckpoint(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("checkpoint not found: %s", args[0])
	}
	fmt.Printf("Deleted checkpoint %s\n", shortID(id))
	return nil
}

func runStar(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}

	if err := e.store.SetStarred(id, !unstarFlag); err != nil {
		return err
	}
	if unstarFlag {
		fmt.Printf("Unstarred %s\n", shortID(id))
	} else {
		fmt.Printf("Starred %s\n", shortID(id))
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}

	result, ok := e.store.Validate(id)
	if !ok {
		return fmt.Errorf("checkpoint not found: %s", args[0])
	}

	if result.Valid {
		fmt.Println("ok")
		return nil
	}
	fmt.Println("invalid:")
	for _, issue := range result.Issues {
		fmt.Printf("  %s\n", issue)
	}
	if !result.CanRollback {
		os.Exit(1)
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	result, err := e.store.CleanupInvalidCheckpoints()
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d checkpoint(s)\n", result.Removed)
	for _, reason := range result.Reasons {
		fmt.Printf("  %s\n", reason)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	result, err := e.store.SyncWithGit()
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d, removed %d\n", result.Added, result.Removed)

	if db, err := database.Open(e.cfg.DatabasePath); err == nil {
		defer db.Close()
		if err := db.RecordSyncRun(result.Added, result.Removed); err != nil {
			e.logger.Warn("failed to record sync run", "error", err)
		}
	}
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if e.git == nil {
		return fmt.Errorf("not a git repository: %s", e.cfg.WorkspaceDir)
	}

	mode := graph.ModeGuardian
	if graphModeFlag == string(graph.ModeFull) {
		mode = graph.ModeFull
	}
	max := graphMaxFlag
	if max <= 0 {
		max = e.store.Settings().MaxGraphCommits
	}

	data, err := graph.NewAssembler(e.git, e.logger).GetGraphData(mode, max)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(data)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANE\tHASH\tWHEN\tMESSAGE")
	for _, c := range data.Commits {
		marker := " "
		if c.IsGuardianCommit {
			marker = "●"
		}
		fmt.Fprintf(w, "%d %s\t%s\t%s\t%s\n",
			c.Lane, marker, c.AbbreviatedHash, formatMillis(c.Date), c.Message)
	}
	w.Flush()
	fmt.Printf("%d commits, %d lanes\n", len(data.Commits), data.TotalLanes)
	return nil
}

func runDiff(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if e.repo == nil {
			return fmt.Errorf("not a git repository: %s", e.cfg.WorkspaceDir)
		}
		out, err := e.repo.Diff(stagedFlag)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	id, err := resolveCheckpointID(e.store, args[0])
	if err != nil {
		return err
	}
	cp, _ := e.store.GetCheckpoint(id)

	if cp.VersionRef != "" && e.repo != nil {
		out, err := e.repo.DiffRef(cp.VersionRef)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	// Snapshot-only checkpoint: no commit to show, list what it captured.
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, cf := range cp.ChangedFiles {
		fmt.Fprintf(w, "%s\t%s\t+%d/-%d\n", cf.ChangeType, cf.Path, cf.LinesAdded, cf.LinesRemoved)
	}
	return w.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	var audit stats.AuditSource
	if db, err := database.Open(e.cfg.DatabasePath); err == nil {
		defer db.Close()
		audit = db
	}

	overall, err := stats.Collect(e.store, audit)
	if err != nil {
		return err
	}
	if jsonFlag {
		return printJSON(overall)
	}

	fmt.Printf("Checkpoints: %d (%d starred, %d with commits)\n",
		overall.TotalCheckpoints, overall.StarredCheckpoints, overall.WithVersionRef)
	fmt.Printf("Sessions:    %d\n", overall.TotalSessions)
	if len(overall.ByType) > 0 {
		fmt.Println("By type:")
		for t, n := range overall.ByType {
			fmt.Printf("  %-14s %d\n", t, n)
		}
	}
	if len(overall.BySource) > 0 {
		fmt.Println("By source:")
		for s, n := range overall.BySource {
			fmt.Printf("  %-14s %d\n", s, n)
		}
	}
	if len(overall.ByDay) > 0 {
		fmt.Println("By day:")
		for _, day := range overall.ByDay {
			fmt.Printf("  %s  %d\n", day.Date, day.Checkpoints)
		}
	}
	return nil
}

// resolveCheckpointID accepts a full ID or an unambiguous prefix.
func resolveCheckpointID(store *checkpoint.Store, ref string) (string, error) {
	if _, ok := store.GetCheckpoint(ref); ok {
		return ref, nil
	}

	var match string
	for _, cp := range store.Checkpoints() {
		if len(ref) >= 4 && len(cp.ID) >= len(ref) && cp.ID[:len(ref)] == ref {
			if match != "" {
				return "", fmt.Errorf("ambiguous checkpoint id: %s", ref)
			}
			match = cp.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("checkpoint not found: %s", ref)
	}
	return match, nil
}

func printResult(result *rollback.Result) {
	fmt.Println(result.Message)
	if len(result.FilesRestored) > 0 {
		fmt.Printf("Restored %d file(s)\n", len(result.FilesRestored))
	}
	for _, path := range result.FilesNotRestored {
		fmt.Printf("  not restored: %s\n", path)
	}
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	if result.BackupID != "" {
		fmt.Printf("Backup checkpoint: %s\n", shortID(result.BackupID))
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("Jan 02 15:04")
}
