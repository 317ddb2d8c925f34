package readiness

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// NodesReady returns a check that holds once every reported node has a Ready
// condition of true. An empty node list is not ready.
func NodesReady(ctx context.Context, client kubernetes.Interface) Check {
	return func() (bool, string) {
		nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
		if err != nil {
			// Transient API errors keep the poll going.
			return false, fmt.Sprintf("listing nodes: %v", err)
		}
		if len(nodes.Items) == 0 {
			return false, "no nodes reported"
		}

		ready := 0
		for i := range nodes.Items {
			if isNodeReady(&nodes.Items[i]) {
				ready++
			}
		}
		if ready == len(nodes.Items) {
			return true, ""
		}
		return false, fmt.Sprintf("%d/%d nodes ready", ready, len(nodes.Items))
	}
}

// PodsReady returns a check that holds once the namespace has at least one pod
// and every pod reports Ready. Zero pods is never treated as ready; that would
// be a false positive on a namespace whose workloads have not been scheduled.
func PodsReady(ctx context.Context, client kubernetes.Interface, namespace string) Check {
	return func() (bool, string) {
		pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			return false, fmt.Sprintf("listing pods in %s: %v", namespace, err)
		}
		if len(pods.Items) == 0 {
			return false, fmt.Sprintf("no pods found in %s", namespace)
		}

		ready := 0
		for i := range pods.Items {
			if isPodReady(&pods.Items[i]) {
				ready++
			}
		}
		if ready == len(pods.Items) {
			return true, ""
		}
		return false, fmt.Sprintf("%d/%d pods ready", ready, len(pods.Items))
	}
}

// isNodeReady reports whether the node has condition Ready=True.
func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// isPodReady reports whether the pod has condition Ready=True.
func isPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
