package backends

import (
	"context"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
	"github.com/kubestack/kube-debugger/internal/utils"
)

// EventsClient lists Kubernetes events scoped to a namespace and window.
type EventsClient struct {
	clientset kubernetes.Interface
}

// NewEventsClient builds a client from in-cluster credentials, falling back
// to the supplied kubeconfig path when not running inside a cluster.
func NewEventsClient(kubeconfigPath string) (*EventsClient, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, utils.NewAppError("kubernetes.config", "no usable cluster credentials", err)
		}
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, utils.NewAppError("kubernetes.client", "build clientset", err)
	}
	return &EventsClient{clientset: clientset}, nil
}

// NewEventsClientFromClientset wraps an existing clientset, used by tests
// and the local mock wiring.
func NewEventsClientFromClientset(clientset kubernetes.Interface) *EventsClient {
	return &EventsClient{clientset: clientset}
}

// Events returns namespace events whose first occurrence falls inside the
// window, newest first. When the selector names a pod, only events whose
// involved object matches that pod are returned.
func (c *EventsClient) Events(ctx context.Context, sel models.Selector, w timewindow.Window) (models.EventsPayload, error) {
	list, err := c.clientset.CoreV1().Events(sel.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return models.EventsPayload{}, utils.NewAppError("kubernetes.events", "list events", err)
	}

	payload := models.EventsPayload{Namespace: sel.Namespace, Events: []models.ClusterEvent{}}
	for i := range list.Items {
		ev := &list.Items[i]
		ts := eventTime(ev)
		if ts.Before(w.Start) || ts.After(w.End) {
			continue
		}
		if sel.PodName != "" && ev.InvolvedObject.Name != sel.PodName {
			continue
		}
		payload.Events = append(payload.Events, models.ClusterEvent{
			Name:           ev.Name,
			Namespace:      ev.Namespace,
			Reason:         ev.Reason,
			Message:        ev.Message,
			Type:           ev.Type,
			Object:         models.ObjectRef{Kind: ev.InvolvedObject.Kind, Name: ev.InvolvedObject.Name},
			FirstTimestamp: ts.UTC(),
			LastTimestamp:  ev.LastTimestamp.Time.UTC(),
			Count:          ev.Count,
		})
	}
	sort.Slice(payload.Events, func(i, j int) bool {
		return payload.Events[i].FirstTimestamp.After(payload.Events[j].FirstTimestamp)
	})
	return payload, nil
}

// Ping verifies API-server connectivity with a single-item namespace list.
func (c *EventsClient) Ping(ctx context.Context) error {
	_, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return utils.NewAppError("kubernetes.ping", "list namespaces", err)
	}
	return nil
}

// eventTime prefers FirstTimestamp, falling back to EventTime for events
// reported through the newer events API.
func eventTime(ev *corev1.Event) time.Time {
	if !ev.FirstTimestamp.IsZero() {
		return ev.FirstTimestamp.Time
	}
	return ev.EventTime.Time
}
