package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/kubestack/kube-debugger/internal/models"
	"github.com/kubestack/kube-debugger/internal/timewindow"
	"github.com/kubestack/kube-debugger/internal/utils"
)

const controlPlaneEventLimit = 1000

// filterLogEventsAPI is the slice of the CloudWatch Logs client this
// adapter needs. Tests substitute a fake.
type filterLogEventsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// CloudWatchClient reads EKS control-plane logs from the cluster's
// CloudWatch log group.
type CloudWatchClient struct {
	api      filterLogEventsAPI
	cluster  string
	logGroup string
}

// NewCloudWatchClient resolves AWS credentials for the region (and optional
// shared-config profile) and targets the control-plane log group of the
// named EKS cluster.
func NewCloudWatchClient(ctx context.Context, region, profile, clusterName string) (*CloudWatchClient, error) {
	if clusterName == "" {
		return nil, utils.NewAppError("cloudwatch.config", "EKS cluster name not configured", nil)
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, utils.NewAppError("cloudwatch.config", "load AWS config", err)
	}
	return &CloudWatchClient{
		api:      cloudwatchlogs.NewFromConfig(cfg),
		cluster:  clusterName,
		logGroup: fmt.Sprintf("/aws/eks/%s/cluster", clusterName),
	}, nil
}

// NewCloudWatchClientFromAPI wraps an existing API implementation, used by
// tests.
func NewCloudWatchClientFromAPI(api filterLogEventsAPI, clusterName string) *CloudWatchClient {
	return &CloudWatchClient{
		api:      api,
		cluster:  clusterName,
		logGroup: fmt.Sprintf("/aws/eks/%s/cluster", clusterName),
	}
}

// ControlPlaneEvents returns control-plane log events within the window,
// optionally narrowed by a CloudWatch filter pattern.
func (c *CloudWatchClient) ControlPlaneEvents(ctx context.Context, w timewindow.Window, pattern string) (models.ControlPlanePayload, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(c.logGroup),
		StartTime:    aws.Int64(w.Start.UnixMilli()),
		EndTime:      aws.Int64(w.End.UnixMilli()),
		Limit:        aws.Int32(controlPlaneEventLimit),
	}
	if pattern != "" {
		input.FilterPattern = aws.String(pattern)
	}

	out, err := c.api.FilterLogEvents(ctx, input)
	if err != nil {
		return models.ControlPlanePayload{}, utils.NewAppError("cloudwatch.filter_log_events", "query control plane logs", err)
	}

	payload := models.ControlPlanePayload{Cluster: c.cluster, Events: make([]models.ControlPlaneEvent, 0, len(out.Events))}
	for _, ev := range out.Events {
		payload.Events = append(payload.Events, models.ControlPlaneEvent{
			Timestamp: time.UnixMilli(aws.ToInt64(ev.Timestamp)).UTC(),
			Message:   aws.ToString(ev.Message),
			LogStream: aws.ToString(ev.LogStreamName),
		})
	}
	payload.Total = len(payload.Events)
	return payload, nil
}

// Ping issues a minimal filter request to verify the log group is readable.
func (c *CloudWatchClient) Ping(ctx context.Context) error {
	now := time.Now()
	_, err := c.api.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(c.logGroup),
		StartTime:    aws.Int64(now.Add(-time.Minute).UnixMilli()),
		EndTime:      aws.Int64(now.UnixMilli()),
		Limit:        aws.Int32(1),
	})
	if err != nil {
		return utils.NewAppError("cloudwatch.ping", "filter probe failed", err)
	}
	return nil
}
