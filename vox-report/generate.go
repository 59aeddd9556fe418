// Package voxreport generates JSON reports on a schedule and stores them in S3
// under a date-partitioned key.
package voxreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

// maxLookbackDays bounds how far GetRawAsOf walks back looking for a report.
const maxLookbackDays = 5

type GenerateCallback func(ctx context.Context) (interface{}, error)

type Handler struct {
	service voxcli.Service
	Logger  zerolog.Logger
	s3      s3iface.S3API
	Now     func() time.Time
	Stdout  io.Writer

	reportName string

	generate GenerateCallback
}

func ReportKey(serviceName, reportName string, timestamp time.Time) string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"), timestamp.Format("15"), timestamp.Format("2006-01-02-15:04:05.json"))
}

func NewHandler(
	service voxcli.Service,
	reportName string,
	s3api s3iface.S3API,
	generate GenerateCallback,
) *Handler {
	return &Handler{
		service:    service,
		Logger:     voxcli.Logger(service),
		s3:         s3api,
		Stdout:     os.Stdout,
		reportName: reportName,
		generate:   generate,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *Handler) Generate(ctx context.Context, _ json.RawMessage) error {
	ctx = h.Logger.WithContext(ctx)
	h.Logger.Info().Str("report", h.reportName).Msg("generating report")
	report, err := h.generate(ctx)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("failed to generate report")
		return err
	}
	reportBytes, err := json.Marshal(report)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("failed to marshal report")
		return err
	}

	now := h.now()
	if voxcli.CommonOpts.Dry {
		return h.writeLocal(report, reportBytes, now)
	}

	key := ReportKey(h.service.Name, h.reportName, now)
	h.Logger.Info().Str("bucket", ReportOpts.Bucket).Str("key", key).Int("size", len(reportBytes)).Msg("saving report to s3")
	_, err = h.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ReportOpts.Bucket),
		Body:        bytes.NewReader(reportBytes),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save report %v to %v: %w", key, ReportOpts.Bucket, err)
	}
	return nil
}

func (h *Handler) writeLocal(report interface{}, reportBytes []byte, now time.Time) error {
	if ReportOpts.OutFile == "" {
		enc := json.NewEncoder(h.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	filename := ReportOpts.OutFile
	if err := os.MkdirAll(path.Dir(filename), 0755); err != nil {
		return err
	}
	h.Logger.Info().Str("filename", filename).Time("generated_at", now).Int("size", len(reportBytes)).Msg("dry run, saving report locally")
	return os.WriteFile(filename, reportBytes, 0644)
}

// GetRawAsOf returns the newest report stored on or before the day of
// timestamp, walking back one day at a time.
func GetRawAsOf(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, timestamp time.Time) ([]byte, string, error) {
	for attempt := 0; ; attempt++ {
		prefix := fmt.Sprintf("%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"))
		// Keys list in ascending order, so the newest report is on the last page.
		var latest string
		err := s3Api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(prefix),
		}, func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				if key := aws.StringValue(object.Key); key > latest {
					latest = key
				}
			}
			return true
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to list reports under %v: %w", prefix, err)
		}

		if latest == "" {
			if attempt >= maxLookbackDays {
				return nil, "", fmt.Errorf("failed to find a %v report in the %v days before %v", reportName, maxLookbackDays, timestamp.Format("2006-01-02"))
			}
			yesterday := timestamp.AddDate(0, 0, -1)
			timestamp = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 0, time.UTC)
			continue
		}
		key := aws.String(latest)

		output, err := s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    key,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to get report %v: %w", aws.StringValue(key), err)
		}
		defer output.Body.Close()

		data, err := io.ReadAll(output.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read report %v: %w", aws.StringValue(key), err)
		}
		return data, aws.StringValue(key), nil
	}
}

func GetLatest(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, obj any) (string, error) {
	data, key, err := GetRawAsOf(ctx, s3Api, bucket, serviceName, reportName, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal latest report: %w", err)
	}
	return key, nil
}

func (h *Handler) printLatest(ctx context.Context) error {
	data, key, err := GetRawAsOf(ctx, h.s3, ReportOpts.Bucket, h.service.Name, h.reportName, h.now())
	if err != nil {
		return err
	}
	h.Logger.Info().Str("key", key).Msg("fetched latest report")
	if ReportOpts.OutFile != "" {
		if err := os.MkdirAll(path.Dir(ReportOpts.OutFile), 0755); err != nil {
			return err
		}
		return os.WriteFile(ReportOpts.OutFile, data, 0644)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return err
	}
	_, err = h.Stdout.Write(pretty.Bytes())
	return err
}

func (h *Handler) Start() error {
	if ReportOpts.GetLatest {
		return h.printLatest(context.Background())
	}

	switch {
	case voxcli.CommonOpts.Console:
		return h.Generate(context.Background(), nil)

	default:
		lambda.Start(h.Generate)
	}
	return nil
}
