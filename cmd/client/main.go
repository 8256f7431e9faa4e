// Command client is the interactive driver: it resolves metadata
// against the name service and pushes or pulls block bytes directly
// against data nodes.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tarunmenon95/gohdfs/internal/config"
	"github.com/tarunmenon95/gohdfs/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cluster := config.Default()
	var nameAddr string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive shell for mkdir/rmdir/rm/ins/cat/ls against the cluster.",
		RunE: func(cmd *cobra.Command, args []string) error {
			repl(nameAddr, cluster)
			return nil
		},
	}
	cmd.Flags().StringVar(&nameAddr, "addr", cluster.DefaultNameAddr, "address of the name service")
	return cmd
}

const helpText = `commands:
  mkdir <path>               create a directory
  rmdir <path>                remove a directory and everything beneath it
  rm <path>                   forget a file
  ins <local_path> <fs_path>  upload a local file
  cat <fs_path>                print a file's contents
  ls <path>                    list a directory
  help                          show this text
  exit                          quit
`

func repl(nameAddr string, cluster config.Cluster) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("$ ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName, rest := fields[0], fields[1:]

		switch cmdName {
		case "exit":
			return
		case "help":
			fmt.Print(helpText)
		case "mkdir", "rmdir", "rm":
			if len(rest) != 1 {
				fmt.Println("usage:", cmdName, "<path>")
				continue
			}
			runSimpleAction(nameAddr, cluster, cmdName, rest[0])
		case "ls":
			if len(rest) != 1 {
				fmt.Println("usage: ls <path>")
				continue
			}
			runLs(nameAddr, cluster, rest[0])
		case "ins":
			if len(rest) != 2 {
				fmt.Println("usage: ins <local_path> <fs_path>")
				continue
			}
			runIns(nameAddr, cluster, rest[0], rest[1])
		case "cat":
			if len(rest) != 1 {
				fmt.Println("usage: cat <fs_path>")
				continue
			}
			runCat(nameAddr, cluster, rest[0])
		default:
			fmt.Println("unknown command:", cmdName)
		}
	}
}

func askNameService(nameAddr string, cluster config.Cluster, req transport.ClientRequest) (transport.ClientResponse, error) {
	conn, err := transport.Dial(nameAddr, cluster.IdleTimeout)
	if err != nil {
		return transport.ClientResponse{}, err
	}
	defer conn.Close()

	req.MessageType = transport.MsgClient
	if err := conn.WriteJSON(req); err != nil {
		return transport.ClientResponse{}, err
	}
	var resp transport.ClientResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return transport.ClientResponse{}, err
	}
	return resp, nil
}

func runSimpleAction(nameAddr string, cluster config.Cluster, action, path string) {
	resp, err := askNameService(nameAddr, cluster, transport.ClientRequest{ActionType: action, Path: path})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !resp.Success {
		fmt.Println("error:", resp.Message)
	}
}

func runLs(nameAddr string, cluster config.Cluster, path string) {
	resp, err := askNameService(nameAddr, cluster, transport.ClientRequest{ActionType: transport.ActionLs, Path: path})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !resp.Success {
		fmt.Println("error:", resp.Message)
		return
	}
	for _, entry := range resp.Contents {
		fmt.Printf("  %s %s\n", entry.Kind, entry.Name)
	}
}

func runIns(nameAddr string, cluster config.Cluster, localPath, fsPath string) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	resp, err := askNameService(nameAddr, cluster, transport.ClientRequest{ActionType: transport.ActionIns, Path: fsPath})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !resp.Success {
		fmt.Println("error:", resp.Message)
		return
	}
	if len(resp.DataNodes) == 0 {
		fmt.Println("error: name service returned no datanodes")
		return
	}

	first, rest := resp.DataNodes[0], resp.DataNodes[1:]
	conn, err := transport.Dial(first.String(), cluster.IdleTimeout)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer conn.Close()

	header := transport.WritePipelineMessage{
		MessageType: transport.MsgWritePipeline,
		BlockID:     resp.BlockID,
		Datanodes:   rest,
	}
	if err := conn.WriteJSON(header); err != nil {
		fmt.Println("error:", err)
		return
	}
	if err := conn.WriteFrame(data); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Printf("wrote %d bytes as block %s\n", len(data), resp.BlockID)
}

// runCat tries each reported data node in order, per §7's retry
// discipline: a connection refusal or a success:false read response
// advances to the next candidate; failure is reported only once every
// candidate has been exhausted.
func runCat(nameAddr string, cluster config.Cluster, fsPath string) {
	resp, err := askNameService(nameAddr, cluster, transport.ClientRequest{ActionType: transport.ActionCat, Path: fsPath})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !resp.Success {
		fmt.Println("error:", resp.Message)
		return
	}

	for _, addr := range resp.DatanodeAddrs {
		data, ok := tryRead(addr, cluster, resp.BlockID)
		if ok {
			os.Stdout.Write(data)
			fmt.Println()
			return
		}
	}
	fmt.Println("error: no candidate datanode returned the block")
}

func tryRead(addr transport.Endpoint, cluster config.Cluster, blockID string) ([]byte, bool) {
	conn, err := transport.Dial(addr.String(), cluster.IdleTimeout)
	if err != nil {
		return nil, false
	}
	defer conn.Close()

	if err := conn.WriteJSON(transport.ClientReadRequest{MessageType: transport.MsgClientRead, BlockID: blockID}); err != nil {
		return nil, false
	}
	var readResp transport.ClientReadResponse
	if err := conn.ReadJSON(&readResp); err != nil || !readResp.Success {
		return nil, false
	}
	data, err := conn.ReadFrame()
	if err != nil {
		return nil, false
	}
	return data, true
}
