package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// kubeProbe checks readiness of a Kubernetes object through the API server.
// Target syntax:
//
//	deployment/<namespace>/<name>
//	daemonset/<namespace>/<name>
//	statefulset/<namespace>/<name>
//	node/<name>
type kubeProbe struct {
	kubeconfig string
	resource   string
	namespace  string
	name       string

	// client is built lazily from kubeconfig; tests inject a fake.
	client kubernetes.Interface
}

func newKubeProbe(kubeconfig, target string) (*kubeProbe, error) {
	parts := strings.Split(target, "/")
	p := &kubeProbe{kubeconfig: kubeconfig}
	switch {
	case len(parts) == 2 && parts[0] == "node":
		p.resource = "node"
		p.name = parts[1]
	case len(parts) == 3:
		p.resource = strings.ToLower(parts[0])
		p.namespace = parts[1]
		p.name = parts[2]
	default:
		return nil, errors.Errorf("invalid kubernetes-resource-ready target %q", target)
	}
	switch p.resource {
	case "node", "deployment", "daemonset", "statefulset":
	default:
		return nil, errors.Errorf("unsupported kubernetes resource kind %q in target %q", p.resource, target)
	}
	return p, nil
}

func (p *kubeProbe) Kind() Kind { return KindKubeResource }

func (p *kubeProbe) clientset() (kubernetes.Interface, error) {
	if p.client != nil {
		return p.client, nil
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", p.kubeconfig)
	if err != nil {
		return nil, errors.Wrapf(err, "loading kubeconfig %s", p.kubeconfig)
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "building kubernetes client")
	}
	p.client = cs
	return cs, nil
}

func (p *kubeProbe) Observe(ctx context.Context) (Observation, error) {
	cs, err := p.clientset()
	if err != nil {
		return Observation{}, err
	}

	switch p.resource {
	case "node":
		return p.observeNode(ctx, cs)
	case "deployment":
		return p.observeDeployment(ctx, cs)
	case "daemonset":
		return p.observeDaemonSet(ctx, cs)
	case "statefulset":
		return p.observeStatefulSet(ctx, cs)
	}
	return Observation{}, errors.Errorf("unsupported resource %q", p.resource)
}

func (p *kubeProbe) observeNode(ctx context.Context, cs kubernetes.Interface) (Observation, error) {
	node, err := cs.CoreV1().Nodes().Get(ctx, p.name, metav1.GetOptions{})
	if err != nil {
		return Observation{Detail: fmt.Sprintf("node %s: %v", p.name, err)}, nil
	}
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			if cond.Status == corev1.ConditionTrue {
				return Observation{Satisfied: true, Detail: "node " + p.name + " is Ready"}, nil
			}
			return Observation{Partial: true, Detail: fmt.Sprintf("node %s Ready=%s", p.name, cond.Status)}, nil
		}
	}
	return Observation{Detail: "node " + p.name + " has no Ready condition"}, nil
}

func (p *kubeProbe) observeDeployment(ctx context.Context, cs kubernetes.Interface) (Observation, error) {
	dep, err := cs.AppsV1().Deployments(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
	if err != nil {
		return Observation{Detail: fmt.Sprintf("deployment %s/%s: %v", p.namespace, p.name, err)}, nil
	}
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	ready := dep.Status.ReadyReplicas
	detail := fmt.Sprintf("deployment %s/%s %d/%d ready", p.namespace, p.name, ready, desired)
	return readyObservation(ready, desired, detail), nil
}

func (p *kubeProbe) observeDaemonSet(ctx context.Context, cs kubernetes.Interface) (Observation, error) {
	ds, err := cs.AppsV1().DaemonSets(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
	if err != nil {
		return Observation{Detail: fmt.Sprintf("daemonset %s/%s: %v", p.namespace, p.name, err)}, nil
	}
	desired := ds.Status.DesiredNumberScheduled
	ready := ds.Status.NumberReady
	detail := fmt.Sprintf("daemonset %s/%s %d/%d ready", p.namespace, p.name, ready, desired)
	if desired == 0 {
		return Observation{Detail: detail + " (no pods scheduled yet)"}, nil
	}
	return readyObservation(ready, desired, detail), nil
}

func (p *kubeProbe) observeStatefulSet(ctx context.Context, cs kubernetes.Interface) (Observation, error) {
	sts, err := cs.AppsV1().StatefulSets(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
	if err != nil {
		return Observation{Detail: fmt.Sprintf("statefulset %s/%s: %v", p.namespace, p.name, err)}, nil
	}
	desired := int32(1)
	if sts.Spec.Replicas != nil {
		desired = *sts.Spec.Replicas
	}
	ready := sts.Status.ReadyReplicas
	detail := fmt.Sprintf("statefulset %s/%s %d/%d ready", p.namespace, p.name, ready, desired)
	return readyObservation(ready, desired, detail), nil
}

func readyObservation(ready, desired int32, detail string) Observation {
	switch {
	case desired > 0 && ready >= desired:
		return Observation{Satisfied: true, Detail: detail}
	case ready > 0:
		return Observation{Partial: true, Detail: detail}
	default:
		return Observation{Detail: detail}
	}
}
