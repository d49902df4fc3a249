package git

import "fmt"

// Command is the closed set of git invocations the service issues.
type Command int

const (
	CmdLog Command = iota
	CmdBranches
	CmdTags
	CmdRemoteTags
	CmdRemotes
	CmdConfig
	CmdGlobalConfig
	CmdStashShow
	CmdStatus
	CmdRefs
	CmdDiff
	CmdInit
	CmdClone
	CmdAdd
	CmdCommit
	CmdFetch
	CmdPush
	CmdCreateBranch
	CmdDeleteBranch
	CmdCreateTag
	CmdDeleteTag
	CmdDeleteRemoteTag
	CmdMerge
	CmdMergeContinue
	CmdMergeAbort
	CmdRebase
	CmdRebaseContinue
	CmdRebaseAbort
	CmdReset
	CmdCheckout
	CmdCheckoutFiles
	CmdRemoveFiles
	CmdClean
	CmdCherryPick
	CmdStashPush
	CmdStashPop
	CmdSubmoduleAdd
)

type change uint8

const (
	changeWorkingTree change = 1 << iota
	changeGitDir
	changeBoth = changeWorkingTree | changeGitDir
)

type commandSpec struct {
	name string
	args []string
	// emptyOn and emptyOnExit mark failures that mean "nothing to report".
	emptyOn     []string
	emptyOnExit []int
	// credentials adds the per-connection credential helper.
	credentials bool
	changes     change
	env         []string
}

var noCommits = []string{
	"fatal: bad default revision 'HEAD'",
	"does not have any commits yet",
	"fatal: Not a git repository",
}

var commandSpecs = map[Command]commandSpec{
	CmdLog:             {name: "log", args: []string{"log", "--decorate=full", "--date=iso-strict", "--pretty=fuller", "--all", "--parents"}, emptyOn: noCommits},
	CmdBranches:        {name: "branches", args: []string{"branch"}},
	CmdTags:            {name: "tags", args: []string{"tag", "-l"}},
	CmdRemoteTags:      {name: "remote-tags", args: []string{"ls-remote", "--tags"}, credentials: true},
	CmdRemotes:         {name: "remotes", args: []string{"remote"}},
	CmdConfig:          {name: "config", args: []string{"config", "--list"}},
	CmdGlobalConfig:    {name: "global-config", args: []string{"config", "--global", "--list"}, emptyOn: []string{"unable to read config file"}},
	CmdStashShow:       {name: "stash-show", args: []string{"stash", "show"}},
	CmdStatus:          {name: "status", args: []string{"status", "--porcelain=v2", "--branch", "--untracked-files=all"}},
	CmdRefs:            {name: "refs", args: []string{"show-ref", "--dereference"}, emptyOnExit: []int{1}},
	CmdDiff:            {name: "diff", args: []string{"diff", "--no-color", "HEAD", "--"}, emptyOn: []string{"ambiguous argument 'HEAD'", "bad revision 'HEAD'"}},
	CmdInit:            {name: "init", args: []string{"init"}, changes: changeBoth},
	CmdClone:           {name: "clone", args: []string{"clone"}, credentials: true},
	CmdAdd:             {name: "add", args: []string{"add", "-A", "--"}, changes: changeWorkingTree},
	CmdCommit:          {name: "commit", args: []string{"commit", "--file=-"}, changes: changeBoth},
	CmdFetch:           {name: "fetch", args: []string{"fetch"}, credentials: true, changes: changeGitDir},
	CmdPush:            {name: "push", args: []string{"push"}, credentials: true, changes: changeGitDir},
	CmdCreateBranch:    {name: "create-branch", args: []string{"branch"}, changes: changeGitDir},
	CmdDeleteBranch:    {name: "delete-branch", args: []string{"branch", "-D"}, changes: changeGitDir},
	CmdCreateTag:       {name: "create-tag", args: []string{"tag"}, changes: changeGitDir},
	CmdDeleteTag:       {name: "delete-tag", args: []string{"tag", "-d"}, changes: changeGitDir},
	CmdDeleteRemoteTag: {name: "delete-remote-tag", args: []string{"push"}, credentials: true, changes: changeGitDir},
	CmdMerge:           {name: "merge", args: []string{"merge"}, changes: changeBoth},
	CmdMergeContinue:   {name: "merge-continue", args: []string{"commit", "--no-edit"}, changes: changeBoth},
	CmdMergeAbort:      {name: "merge-abort", args: []string{"merge", "--abort"}, changes: changeBoth},
	CmdRebase:          {name: "rebase", args: []string{"rebase"}, changes: changeBoth},
	CmdRebaseContinue:  {name: "rebase-continue", args: []string{"rebase", "--continue"}, changes: changeBoth, env: []string{"GIT_EDITOR=true"}},
	CmdRebaseAbort:     {name: "rebase-abort", args: []string{"rebase", "--abort"}, changes: changeBoth},
	CmdReset:           {name: "reset", args: []string{"reset", "--hard"}, changes: changeBoth},
	CmdCheckout:        {name: "checkout", args: []string{"checkout"}, changes: changeBoth},
	CmdCheckoutFiles:   {name: "checkout-files", args: []string{"checkout", "HEAD", "--"}, changes: changeWorkingTree},
	CmdRemoveFiles:     {name: "remove-files", args: []string{"rm", "-f", "--"}, changes: changeWorkingTree},
	CmdClean:           {name: "clean", args: []string{"clean", "-fd"}, changes: changeWorkingTree},
	CmdCherryPick:      {name: "cherry-pick", args: []string{"cherry-pick"}, changes: changeBoth},
	CmdStashPush:       {name: "stash-push", args: []string{"stash", "push", "-m"}},
	CmdStashPop:        {name: "stash-pop", args: []string{"stash", "pop"}},
	CmdSubmoduleAdd:    {name: "submodule-add", args: []string{"submodule", "add"}, credentials: true, changes: changeBoth},
}

func (c Command) String() string {
	if spec, ok := commandSpecs[c]; ok {
		return spec.name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

func (c Command) spec() commandSpec {
	spec, ok := commandSpecs[c]
	if !ok {
		panic(fmt.Sprintf("git: unknown command %d", int(c)))
	}
	return spec
}
