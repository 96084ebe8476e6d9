package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

// fakeProbe returns scripted observations, repeating the last one.
type fakeProbe struct {
	script []Observation
	calls  int
}

func (p *fakeProbe) Kind() Kind { return "fake" }

func (p *fakeProbe) Observe(ctx context.Context) (Observation, error) {
	i := p.calls
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	p.calls++
	return p.script[i], nil
}

func testEngine(p Probe) *Engine {
	e := NewEngine(nil, "", nil)
	e.newProbe = func(Spec) (Probe, error) { return p, nil }
	return e
}

func fastSpec() Spec {
	return Spec{
		Kind:         "fake",
		PollInterval: 10 * time.Millisecond,
		MaxWait:      500 * time.Millisecond,
		Grace:        50 * time.Millisecond,
	}
}

func TestCheckImmediatelyHealthy(t *testing.T) {
	p := &fakeProbe{script: []Observation{{Satisfied: true, Detail: "ok"}}}
	res := testEngine(p).Check(context.Background(), fastSpec())
	assert.Equal(t, VerdictHealthy, res.Verdict)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, p.calls)
}

func TestCheckEventuallyHealthy(t *testing.T) {
	p := &fakeProbe{script: []Observation{
		{Detail: "starting"},
		{Detail: "starting"},
		{Satisfied: true, Detail: "ready"},
	}}
	res := testEngine(p).Check(context.Background(), fastSpec())
	assert.Equal(t, VerdictHealthy, res.Verdict)
	assert.Equal(t, 3, res.Attempts)
}

func TestCheckStuckPartialIsDegraded(t *testing.T) {
	p := &fakeProbe{script: []Observation{
		{Partial: true, Detail: "1/3 ready"},
	}}
	res := testEngine(p).Check(context.Background(), fastSpec())
	assert.Equal(t, VerdictDegraded, res.Verdict)
	assert.Equal(t, "1/3 ready", res.Detail)
}

func TestCheckProgressResetsGraceWindow(t *testing.T) {
	// Detail keeps changing, so the grace window keeps restarting and the
	// check must ride out to the deadline instead of settling on Degraded.
	var n int
	e := testEngine(probeFunc(func(ctx context.Context) (Observation, error) {
		n++
		return Observation{Partial: true, Detail: time.Now().String()}, nil
	}))
	spec := fastSpec()
	spec.Grace = 100 * time.Millisecond
	spec.MaxWait = 200 * time.Millisecond

	res := e.Check(context.Background(), spec)
	assert.Equal(t, VerdictTimedOut, res.Verdict)
	assert.Greater(t, n, 2)
}

type probeFunc func(ctx context.Context) (Observation, error)

func (f probeFunc) Kind() Kind { return "fake" }

func (f probeFunc) Observe(ctx context.Context) (Observation, error) { return f(ctx) }

func TestCheckNeverSatisfiedTimesOut(t *testing.T) {
	p := &fakeProbe{script: []Observation{{Detail: "nothing yet"}}}
	start := time.Now()
	res := testEngine(p).Check(context.Background(), fastSpec())
	assert.Equal(t, VerdictTimedOut, res.Verdict)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestCheckCancelledIsUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProbe{script: []Observation{{Detail: "waiting"}}}
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	spec := fastSpec()
	spec.PollInterval = 10 * time.Second
	spec.MaxWait = time.Hour
	res := testEngine(p).Check(ctx, spec)
	assert.Equal(t, VerdictUnknown, res.Verdict)
	assert.Error(t, res.Err)
}

func TestCheckUnknownKind(t *testing.T) {
	e := NewEngine(nil, "", nil)
	res := e.Check(context.Background(), Spec{Kind: "bogus", Target: "x"})
	assert.Equal(t, VerdictUnknown, res.Verdict)
	require.Error(t, res.Err)
	assert.IsType(t, &UnknownKindError{}, res.Err)
}

func TestKnownKind(t *testing.T) {
	assert.True(t, KnownKind(KindSystemdService))
	assert.True(t, KnownKind(KindHelmRelease))
	assert.False(t, KnownKind("bogus"))
}

func TestKubeProbeTargetParsing(t *testing.T) {
	p, err := newKubeProbe("", "deployment/kube-system/coredns")
	require.NoError(t, err)
	assert.Equal(t, "deployment", p.resource)
	assert.Equal(t, "kube-system", p.namespace)
	assert.Equal(t, "coredns", p.name)

	p, err = newKubeProbe("", "node/k8s-single")
	require.NoError(t, err)
	assert.Equal(t, "node", p.resource)
	assert.Equal(t, "k8s-single", p.name)

	_, err = newKubeProbe("", "deployment/coredns")
	assert.Error(t, err)
	_, err = newKubeProbe("", "cronjob/ns/name")
	assert.Error(t, err)
}

func TestPortProbeTargetParsing(t *testing.T) {
	_, err := newPortProbe(nil, "6443")
	require.NoError(t, err)
	_, err = newPortProbe(nil, "not-a-port")
	assert.Error(t, err)
	_, err = newPortProbe(nil, "70000")
	assert.Error(t, err)
}

func int32ptr(v int32) *int32 { return &v }

func TestKubeProbeDeployment(t *testing.T) {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "coredns", Namespace: "kube-system"},
		Spec:       appsv1.DeploymentSpec{Replicas: int32ptr(2)},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: 2},
	}
	p, err := newKubeProbe("", "deployment/kube-system/coredns")
	require.NoError(t, err)
	p.client = fake.NewSimpleClientset(dep)

	obs, err := p.Observe(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.Satisfied)

	dep.Status.ReadyReplicas = 1
	p.client = fake.NewSimpleClientset(dep)
	obs, err = p.Observe(context.Background())
	require.NoError(t, err)
	assert.False(t, obs.Satisfied)
	assert.True(t, obs.Partial)
	assert.Contains(t, obs.Detail, "1/2")
}

func TestKubeProbeMissingObjectIsNotSatisfied(t *testing.T) {
	p, err := newKubeProbe("", "daemonset/kube-system/calico-node")
	require.NoError(t, err)
	p.client = fake.NewSimpleClientset()
	obs, err := p.Observe(context.Background())
	require.NoError(t, err)
	assert.False(t, obs.Satisfied)
	assert.False(t, obs.Partial)
}

func TestKubeProbeNodeReady(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "k8s-single"},
		Status: corev1.NodeStatus{Conditions: []corev1.NodeCondition{
			{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
		}},
	}
	p, err := newKubeProbe("", "node/k8s-single")
	require.NoError(t, err)
	p.client = fake.NewSimpleClientset(node)
	obs, err := p.Observe(context.Background())
	require.NoError(t, err)
	assert.True(t, obs.Satisfied)
}
