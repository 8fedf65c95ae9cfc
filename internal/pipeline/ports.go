package pipeline

import "context"

// BuildRequest describes the image the Builder must produce.
type BuildRequest struct {
	// ContextDir is the application directory sent as build context.
	ContextDir string
	// Dockerfile is relative to ContextDir.
	Dockerfile string
	// Manifest is the dependency manifest, relative to ContextDir. Empty
	// means the image declares no dependency manifest.
	Manifest string
	// Image is the full registry reference the image is tagged with.
	Image    string
	Platform string
	Labels   map[string]string
}

// BuiltImage is a locally available image.
type BuiltImage struct {
	Reference string
	ID        string
}

// PublishedImage is an image pullable from the registry.
type PublishedImage struct {
	Reference string
	Digest    string
}

// DeployRequest asks the hosting resource Target to run Image.
type DeployRequest struct {
	Target string
	Image  string
}

// Builder packages the application into a local container image.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) (BuiltImage, error)
}

// Publisher uploads a built image to the registry, overwriting the tag.
type Publisher interface {
	Publish(ctx context.Context, img BuiltImage) (PublishedImage, error)
}

// Deployer points the hosting resource at an image. It returns once the
// host accepted the request; it does not wait for the application.
type Deployer interface {
	Deploy(ctx context.Context, req DeployRequest) error
}

// RunRepository persists run records.
type RunRepository interface {
	Create(ctx context.Context, r Run) error
	Update(ctx context.Context, r Run) error
	Get(ctx context.Context, id string) (Run, error)
	// List returns the most recent runs first. A limit <= 0 returns all runs.
	List(ctx context.Context, limit int) ([]Run, error)
}

// Locker serializes runs against one deployment target.
type Locker interface {
	// Lock acquires key for owner or returns errors.ErrTargetBusy.
	Lock(ctx context.Context, key, owner string) error
	// Refresh renews a held lock so that it is not reclaimed as stale
	// while owner is still running.
	Refresh(ctx context.Context, key, owner string) error
	Unlock(ctx context.Context, key, owner string) error
}

// Notifier is told about every run that reached a terminal state.
type Notifier interface {
	Notify(ctx context.Context, r Run) error
}
