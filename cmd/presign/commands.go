package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-presign/pkg/simplepresign"
	s3storage "github.com/tendant/simple-presign/pkg/simplepresign/storage/s3"
)

// NewGetCommand creates the get command
func NewGetCommand(flags *globalFlags) *cobra.Command {
	var (
		filename    string
		inline      bool
		contentType string
		versionID   string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Presign a download URL",
		Long:  `Presign a GetObject request. The URL can be opened directly in a browser.`,
		Example: `  presign get reports/2024.pdf
  presign get reports/2024.pdf --filename annual.pdf --expires 15m
  presign get images/cat.png --inline -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd, flags)
			if err != nil {
				return err
			}
			startAt, err := presignOptions(flags)
			if err != nil {
				return err
			}

			input := &s3.GetObjectInput{Key: aws.String(args[0])}
			switch {
			case inline:
				input.ResponseContentDisposition = aws.String("inline")
			case filename != "":
				input.ResponseContentDisposition = aws.String(s3storage.AttachmentDisposition(filename))
			}
			if contentType != "" {
				input.ResponseContentType = aws.String(contentType)
			}
			if versionID != "" {
				input.VersionId = aws.String(versionID)
			}

			result, err := backend.PresignGetObject(cmd.Context(), input, startAt)
			if err != nil {
				return fmt.Errorf("failed to presign download: %w", err)
			}
			return printResult(cmd.OutOrStdout(), flags.output, result)
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "f", "", "file name offered to the browser (attachment)")
	cmd.Flags().BoolVar(&inline, "inline", false, "display inline instead of downloading")
	cmd.Flags().StringVar(&contentType, "response-content-type", "", "override the Content-Type of the response")
	cmd.Flags().StringVar(&versionID, "version-id", "", "object version")

	return cmd
}

// NewPutCommand creates the put command
func NewPutCommand(flags *globalFlags) *cobra.Command {
	var (
		contentType string
		metadata    map[string]string
		uploadFile  string
	)

	cmd := &cobra.Command{
		Use:   "put <key>",
		Short: "Presign an upload URL",
		Long: `Presign a PutObject request. Any headers printed with the URL were part of
the signature and must be sent with the upload.

With --upload the file is sent to the presigned URL right away.`,
		Example: `  presign put uploads/report.pdf --content-type application/pdf
  presign put uploads/data.csv --meta owner=alice --upload ./data.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd, flags)
			if err != nil {
				return err
			}
			startAt, err := presignOptions(flags)
			if err != nil {
				return err
			}

			input := &s3.PutObjectInput{
				Key:      aws.String(args[0]),
				Metadata: metadata,
			}
			if contentType != "" {
				input.ContentType = aws.String(contentType)
			}

			result, err := backend.PresignPutObject(cmd.Context(), input, startAt)
			if err != nil {
				return fmt.Errorf("failed to presign upload: %w", err)
			}

			if uploadFile == "" {
				return printResult(cmd.OutOrStdout(), flags.output, result)
			}
			return upload(cmd, result, uploadFile)
		},
	}

	cmd.Flags().StringVarP(&contentType, "content-type", "t", "", "Content-Type the upload must carry")
	cmd.Flags().StringToStringVarP(&metadata, "meta", "m", nil, "object metadata as key=value (repeatable)")
	cmd.Flags().StringVarP(&uploadFile, "upload", "u", "", "upload this file to the presigned URL")

	return cmd
}

// NewHeadCommand creates the head command
func NewHeadCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "head <key>",
		Short: "Presign a HeadObject URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd, flags)
			if err != nil {
				return err
			}
			startAt, err := presignOptions(flags)
			if err != nil {
				return err
			}
			result, err := backend.PresignHeadObject(cmd.Context(), &s3.HeadObjectInput{Key: aws.String(args[0])}, startAt)
			if err != nil {
				return fmt.Errorf("failed to presign head: %w", err)
			}
			return printResult(cmd.OutOrStdout(), flags.output, result)
		},
	}
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Presign a DeleteObject URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newBackend(cmd, flags)
			if err != nil {
				return err
			}
			startAt, err := presignOptions(flags)
			if err != nil {
				return err
			}
			result, err := backend.PresignDeleteObject(cmd.Context(), &s3.DeleteObjectInput{Key: aws.String(args[0])}, startAt)
			if err != nil {
				return fmt.Errorf("failed to presign delete: %w", err)
			}
			return printResult(cmd.OutOrStdout(), flags.output, result)
		},
	}
}

func printResult(w io.Writer, format string, result *simplepresign.PresignedRequest) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "text", "":
		fmt.Fprintln(w, result.URL)
		keys := make([]string, 0, len(result.Header))
		for k := range result.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, strings.Join(result.Header[k], ","))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func upload(cmd *cobra.Command, result *simplepresign.PresignedRequest, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	req, err := result.MakeHTTPRequest(cmd.Context(), f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()

	slog.Debug("Uploading", "file", path, "size", info.Size(), "method", req.Method)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", path, info.Size())
	return nil
}
