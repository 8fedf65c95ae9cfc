package builder

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	shipiterr "github.com/familyevents/shipit/errors"
	"github.com/familyevents/shipit/internal/pipeline"
)

type fakeDocker struct {
	stream     string
	buildErr   error
	inspectErr error

	options types.ImageBuildOptions
	context []byte
}

func (f *fakeDocker) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.options = options
	f.context, _ = io.ReadAll(buildContext)
	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.stream))}, nil
}

func (f *fakeDocker) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	if f.inspectErr != nil {
		return types.ImageInspect{}, nil, f.inspectErr
	}
	return types.ImageInspect{ID: "sha256:abc123", RepoTags: []string{imageID}}, nil, nil
}

var _ = Describe("DockerBuilder", func() {
	var (
		docker *fakeDocker
		b      *DockerBuilder
		req    pipeline.BuildRequest
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.11-slim\nCOPY . /app\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests==2.31.0\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "bot.py"), []byte("print('hi')\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, ".env"), []byte("TOKEN=secret\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte(".env\n"), 0o644)).To(Succeed())

		docker = &fakeDocker{
			stream: `{"stream":"Step 1/2 : FROM python:3.11-slim\n"}` + "\n" +
				`{"stream":"Successfully built abc123\n"}` + "\n",
		}
		out = &bytes.Buffer{}
		b = &DockerBuilder{Client: docker, Out: out}
		req = pipeline.BuildRequest{
			ContextDir: dir,
			Dockerfile: "Dockerfile",
			Manifest:   "requirements.txt",
			Image:      "plannerregistry.azurecr.io/planner:latest",
			Platform:   "amd64",
			Labels:     map[string]string{LabelRevision: "0a1b2c3d"},
		}
	})

	It("should build and tag the requested reference", func() {
		img, err := b.Build(context.TODO(), req)
		Expect(err).ToNot(HaveOccurred())
		Expect(img.Reference).To(Equal(req.Image))
		Expect(img.ID).To(Equal("sha256:abc123"))

		Expect(docker.options.Tags).To(ConsistOf(req.Image))
		Expect(docker.options.Platform).To(Equal("linux/amd64"))
		Expect(docker.options.Labels).To(HaveKeyWithValue(LabelRevision, "0a1b2c3d"))
		Expect(out.String()).To(ContainSubstring("Successfully built"))
	})

	It("should honour .dockerignore", func() {
		_, err := b.Build(context.TODO(), req)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(docker.context)).To(ContainSubstring("bot.py"))
		Expect(string(docker.context)).ToNot(ContainSubstring("TOKEN=secret"))
	})

	It("should fail before contacting the daemon on an invalid manifest", func() {
		Expect(os.WriteFile(filepath.Join(req.ContextDir, "requirements.txt"), []byte("requests==\n"), 0o644)).To(Succeed())
		_, err := b.Build(context.TODO(), req)
		Expect(errors.Is(err, shipiterr.ErrBuild)).To(BeTrue())
		Expect(docker.context).To(BeNil())
	})

	It("should report an error in the build output as a build failure", func() {
		docker.stream = `{"stream":"Step 1/2 : FROM python:3.99\n"}` + "\n" +
			`{"errorDetail":{"message":"manifest for python:3.99 not found"},"error":"manifest for python:3.99 not found"}` + "\n"
		_, err := b.Build(context.TODO(), req)
		Expect(errors.Is(err, shipiterr.ErrBuild)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("python:3.99 not found"))
	})

	It("should report a rejected build request as a build failure", func() {
		docker.buildErr = errors.New("Error response from daemon: dockerfile parse error")
		_, err := b.Build(context.TODO(), req)
		Expect(errors.Is(err, shipiterr.ErrBuild)).To(BeTrue())
	})

	It("should fail when the tagged image cannot be inspected", func() {
		docker.inspectErr = errors.New("No such image")
		_, err := b.Build(context.TODO(), req)
		Expect(errors.Is(err, shipiterr.ErrBuild)).To(BeTrue())
	})
})
