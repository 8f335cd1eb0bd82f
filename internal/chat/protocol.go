package chat

import (
	"fmt"
	"strings"
)

// Lines sent by the server. The prefixes are cosmetic; clients do not parse
// them.

const serverPrefix = "SERVER: "

func serverLine(format string, args ...any) string {
	return serverPrefix + fmt.Sprintf(format, args...)
}

func greetingLines(maxNick int) []string {
	return []string{
		serverLine("Welcome! Let's register your nickname."),
		serverLine("Send it as: NICK <name>"),
		serverLine("A nickname is a single word of at most %d characters, for example: NICK test", maxNick),
		serverLine("Your turn, what is your nickname?"),
	}
}

func welcomeLines(nick, lobby string) []string {
	return []string{
		serverLine("Your nickname is %s.", nick),
		serverLine("You are in the %s.", lobby),
		serverLine("Use /join #<room> to enter a room, /help for all commands."),
	}
}

func helpLines() []string {
	return []string{
		serverLine("Commands:"),
		serverLine("  /join #<room>           move to a room (created on demand)"),
		serverLine("  /leave                  go back to the lobby"),
		serverLine("  /private <user> <text>  private message"),
		serverLine("  /users                  who is in your room"),
		serverLine("  /rooms                  list rooms"),
		serverLine("  /history                recent messages of your room"),
		serverLine("  /exit, /quit            disconnect"),
	}
}

var (
	msgNickEmpty       = serverLine("Nickname cannot be empty. Try again (NICK <name>):")
	msgNickCommand     = serverLine("Invalid identification command. Use NICK <name>.")
	msgJoinUsage       = serverLine("Invalid /join command. Use: /join #<room>")
	msgAlreadyInLobby  = serverLine("You are already in the lobby. Use /join #<room> to move.")
	msgPrivateUsage    = serverLine("Invalid /private command. Usage: /private <user> <message>")
	msgPrivateSelf     = serverLine("You cannot send a private message to yourself.")
	msgClosing         = serverLine("Closing connection...")
	msgHistoryDisabled = serverLine("History is not available on this server.")
)

func nickInvalidLine(maxLen int) string {
	return serverLine("Nickname must be a single word of at most %d characters. Try again (NICK <name>):", maxLen)
}

func nickTakenLine(nick string) string {
	return serverLine("Nickname '%s' is already in use. Try another (NICK <name>):", nick)
}

func lobbyJoinNotice(nick, lobby string) string {
	return serverLine("%s joined the %s.", nick, lobby)
}

func leftRoomNotice(nick string) string {
	return serverLine("%s left the room.", nick)
}

func leftForRoomNotice(nick, room string) string {
	return serverLine("%s left the room to join %s.", nick, displayRoom(room))
}

func joinedRoomNotice(nick string) string {
	return serverLine("%s joined the room.", nick)
}

func backToLobbyNotice(nick string) string {
	return serverLine("%s is back in the lobby.", nick)
}

func enteredRoomLine(room string) string {
	return serverLine("You entered %s.", displayRoom(room))
}

func returnedToLobbyLine(from, lobby string) string {
	return serverLine("You left %s and are back in the %s.", displayRoom(from), lobby)
}

func roomReservedLine(room string) string {
	return serverLine("%s is reserved. Pick another room.", displayRoom(room))
}

func alreadyInRoomLine(room string) string {
	return serverLine("You are already in %s.", displayRoom(room))
}

func roomMessageLine(nick, room, text string) string {
	return fmt.Sprintf("[%s in %s]: %s", nick, displayRoom(room), text)
}

func privateFromLine(sender, text string) string {
	return fmt.Sprintf("(private from %s): %s", sender, text)
}

func privateToLine(target, text string) string {
	return fmt.Sprintf("(private to %s): %s", target, text)
}

func privateLogLine(sender, target, text string) string {
	return fmt.Sprintf("[private from %s to %s]: %s", sender, target, text)
}

func userNotFoundLine(nick string) string {
	return serverLine("User '%s' was not found or is offline.", nick)
}

func unknownCommandLine(cmd string) string {
	return serverLine("Unknown or invalid command: %s", cmd)
}

func usersLine(room string, names []string) string {
	return serverLine("Users in %s: %s", displayRoom(room), strings.Join(names, ", "))
}

func roomsLine(rooms []RoomInfo) string {
	parts := make([]string, 0, len(rooms))
	for _, r := range rooms {
		parts = append(parts, fmt.Sprintf("%s (%d)", displayRoom(r.Name), r.Members))
	}
	return serverLine("Rooms: %s", strings.Join(parts, ", "))
}

func historyHeaderLine(room string, n int) string {
	return serverLine("Last %d messages in %s:", n, displayRoom(room))
}
