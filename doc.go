/*
Package ldb implements the decoding and iteration core of a compact,
sector-sharded key-value store. Records are addressed by a 4-byte primary
key plus an optional variable-length subkey and are grouped into nodes
which may chain across the sector file.

Data Structure Documentation

Sector

All data sharing one leading primary-key byte (k0) lives in a single
sector file. A sector contains a node area followed by a suffix index
and a sector footer.

    Sector layout:
    +-----------+--------+---------+--------+--------------+---------------+
    | magic (8) | node 1 |   ...   | node n | suffix index | sector footer |
    +-----------+--------+---------+--------+--------------+---------------+

    Suffix index (one entry per populated key suffix, ascending):
    +-------------------+---------------------+--------------------------+----------------------------+-------+
    | suffix 1 (varint) |  offset 1 (varint)  | suffix 2 (varint,delta)  |  offset 2 (varint,delta)   |  ...  |
    +-------------------+---------------------+--------------------------+----------------------------+-------+

    Sector footer:
    +------------------------+------------------+------------------+
    | index offset (8 bytes) |  codec (1 byte)  |  magic (8 bytes) |
    +------------------------+------------------+------------------+

The node area may be snappy-compressed as a whole; node offsets always
refer to the uncompressed layout, with the first node at offset 8.

Node

A node is one chunk of a primary key's data. Its header carries the
absolute offset of the next node in the chain (0 = end of chain) and the
content size.

    Node layout:
    +---------------------+------------------------+------------------+
    | next offset (4, BE) | content size (4, BE)   | content (varlen) |
    +---------------------+------------------------+------------------+

For tables with a fixed record length the content is a flat array of
records and is handed to record handlers as a single unit. For
variable-length tables the content is a sequence of dataset groups
packed back-to-back.

    Dataset group:
    +--------------------+------------------------+-------------------+
    | subkey (key_ln-4)  | dataset size (2, BE)   | dataset (varlen)  |
    +--------------------+------------------------+-------------------+

    Dataset:
    +-----------------------+--------------------+-------+
    | record size (2, BE)   | record (varlen)    |  ...  |
    +-----------------------+--------------------+-------+
*/
package ldb
