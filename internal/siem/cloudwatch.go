// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

// cloudWatchAPI is the subset of the CloudWatch Logs client the adapter
// uses.
type cloudWatchAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatch pushes batches with PutLogEvents. The log group and stream
// are created on first use.
type CloudWatch struct {
	client    cloudWatchAPI
	logGroup  string
	logStream string

	// ready is only touched by the delivering goroutine.
	ready bool
}

// NewCloudWatch loads the default AWS configuration (environment, shared
// config, instance role) and creates the adapter. A non-empty endpoint
// overrides the service endpoint.
func NewCloudWatch(ctx context.Context, s config.SIEMSettings) (*CloudWatch, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudwatch: load AWS config: %w", err)
	}

	client := cloudwatchlogs.NewFromConfig(awsCfg, func(o *cloudwatchlogs.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
	})
	return newCloudWatch(client, s.LogGroup, s.LogStream), nil
}

func newCloudWatch(client cloudWatchAPI, group, stream string) *CloudWatch {
	if stream == "" {
		stream = "observa"
	}
	return &CloudWatch{client: client, logGroup: group, logStream: stream}
}

// Name returns "cloudwatch".
func (a *CloudWatch) Name() string { return ProviderCloudWatch }

// Send pushes the batch in timestamp order.
func (a *CloudWatch) Send(ctx context.Context, batch []*record.Entry) error {
	if len(batch) == 0 {
		return nil
	}
	if !a.ready {
		if err := a.ensureLogStream(ctx); err != nil {
			return err
		}
		a.ready = true
	}

	events := make([]types.InputLogEvent, 0, len(batch))
	for _, e := range batch {
		events = append(events, types.InputLogEvent{
			Message:   aws.String(string(record.Encode(e))),
			Timestamp: aws.Int64(e.TimestampMS),
		})
	}
	slices.SortStableFunc(events, func(x, y types.InputLogEvent) int {
		return cmp.Compare(aws.ToInt64(x.Timestamp), aws.ToInt64(y.Timestamp))
	})

	out, err := a.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(a.logGroup),
		LogStreamName: aws.String(a.logStream),
		LogEvents:     events,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			a.ready = false
		}
		var invalid *types.InvalidParameterException
		if errors.As(err, &invalid) {
			return backoff.Permanent(fmt.Errorf("cloudwatch: put log events: %w", err))
		}
		return fmt.Errorf("cloudwatch: put log events: %w", err)
	}
	if out != nil && out.RejectedLogEventsInfo != nil {
		info := out.RejectedLogEventsInfo
		return backoff.Permanent(fmt.Errorf("cloudwatch: events rejected (too old before index %d, too new after index %d, expired before index %d)",
			aws.ToInt32(info.TooOldLogEventEndIndex), aws.ToInt32(info.TooNewLogEventStartIndex), aws.ToInt32(info.ExpiredLogEventEndIndex)))
	}
	return nil
}

// ensureLogStream creates the log group and stream if they do not exist.
func (a *CloudWatch) ensureLogStream(ctx context.Context) error {
	_, err := a.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(a.logGroup),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("cloudwatch: create log group: %w", err)
	}

	_, err = a.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(a.logGroup),
		LogStreamName: aws.String(a.logStream),
	})
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("cloudwatch: create log stream: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need release.
func (a *CloudWatch) Close() error { return nil }
