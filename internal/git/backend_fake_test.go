package git

import (
	"context"
	"errors"

	gitbackend "github.com/thiagokokada/gitstate-go/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	headStateFunc     func() (gitbackend.HeadState, error)
	listBranchesFunc  func() ([]string, error)
	switchBranchFunc  func(name string, create bool) error
	remoteURLFunc     func(remote string) (string, error)
	statusMapFunc     func() (map[string]gitbackend.FileStatus, error)
	modifiedFilesFunc func() ([]string, error)
	indexBlobFunc     func(path string) ([]string, bool, error)

	lastSwitchBranch string
	lastSwitchCreate bool
	switchCalls      int
	lastRemote       string
}

func (f *fakeBackend) Name() string     { return "fake" }
func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) HeadState(context.Context) (gitbackend.HeadState, error) {
	if f.headStateFunc != nil {
		return f.headStateFunc()
	}
	return gitbackend.HeadState{}, errors.New("unexpected HeadState call")
}

func (f *fakeBackend) ListBranches(context.Context) ([]string, error) {
	if f.listBranchesFunc != nil {
		return f.listBranchesFunc()
	}
	return nil, errors.New("unexpected ListBranches call")
}

func (f *fakeBackend) SwitchBranch(_ context.Context, name string, create bool) error {
	f.switchCalls++
	f.lastSwitchBranch = name
	f.lastSwitchCreate = create
	if f.switchBranchFunc != nil {
		return f.switchBranchFunc(name, create)
	}
	return errors.New("unexpected SwitchBranch call")
}

func (f *fakeBackend) RemoteURL(_ context.Context, remote string) (string, error) {
	f.lastRemote = remote
	if f.remoteURLFunc != nil {
		return f.remoteURLFunc(remote)
	}
	return "", errors.New("unexpected RemoteURL call")
}

func (f *fakeBackend) StatusMap(context.Context) (map[string]gitbackend.FileStatus, error) {
	if f.statusMapFunc != nil {
		return f.statusMapFunc()
	}
	return nil, errors.New("unexpected StatusMap call")
}

func (f *fakeBackend) ModifiedFiles(context.Context) ([]string, error) {
	if f.modifiedFilesFunc != nil {
		return f.modifiedFilesFunc()
	}
	return nil, errors.New("unexpected ModifiedFiles call")
}

func (f *fakeBackend) IndexBlob(_ context.Context, path string) ([]string, bool, error) {
	if f.indexBlobFunc != nil {
		return f.indexBlobFunc(path)
	}
	return nil, false, errors.New("unexpected IndexBlob call")
}
